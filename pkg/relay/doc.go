/*
Package relay is the facade over the event fabric.

One constructor wires the priority queue, dispatcher, template engine,
delivery pipeline, inbound webhook verification, personal-log router,
broadcast hub and archive behind a single API:

	cfg := config.Default()
	chat, err := transport.NewChatTransport(cfg.Chat.Token)
	if err != nil {
		log.Fatal(err)
	}

	r, err := relay.New(relay.Options{
		Config:     cfg,
		Transports: []transport.Transport{chat},
	})
	if err != nil {
		log.Fatal(err)
	}
	if err := r.Start(ctx); err != nil {
		log.Fatal(err)
	}
	defer r.Shutdown(30 * time.Second)

	r.Publish(types.NewEvent(
		types.CategorySystem, "backup", types.PriorityHigh, "backup complete"))

Start registers the built-in handlers (event trace log, personal-log
forwarder, broadcast feed) before the dispatcher begins pulling from
the queue, so no early event can miss them.
*/
package relay
