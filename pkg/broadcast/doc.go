/*
Package broadcast provides the websocket fan-out hub for relay events.

The hub subscribes to the bus like any other handler and forwards the
events its options admit (system events, user events, or both) to
in-process subscriber channels and connected websocket clients. Both
the hub input channel and each subscriber channel are buffered; a slow
consumer is skipped, never blocked on, so broadcast can never stall
event dispatch.

# Usage

	hub := broadcast.NewHub(broadcast.Options{SystemEvents: true})
	hub.Start()
	defer hub.Stop()

	bus.Registry().RegisterAll("broadcast", hub.Handle)
	mux.HandleFunc("/ws", hub.HandleWS)

In-process consumers use Subscribe/Unsubscribe and receive *types.Event
on a buffered channel. Websocket clients receive each event as one JSON
text frame.
*/
package broadcast
