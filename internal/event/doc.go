// Package event provides the synchronous notification bus used by scenes.
//
// A scene publishes one event per mutation (object added, modified, removed,
// freehand path created). Interested components subscribe to a topic and
// receive the event in the publisher's goroutine, in registration order,
// before Publish returns. Synchronous delivery is what lets the
// history engine observe the re-entrancy guard at the exact moment a reload
// re-adds objects.
//
// # Topics
//
// Topics are dot-separated:
//
//	object.added
//	object.modified
//	object.removed
//	path.created
//
// # Usage
//
//	bus := event.NewBus()
//	sub, err := bus.Subscribe("object.added", func(ctx context.Context, env event.Envelope) error {
//	    // handle env.Payload
//	    return nil
//	})
//	defer sub.Cancel()
//
//	bus.Publish(ctx, "object.added", obj)
package event
