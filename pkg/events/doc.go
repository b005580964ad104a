/*
Package events distributes placement and inventory events to in-process
subscribers.

The Broker fans each published event out to every subscriber channel. A
slow subscriber never blocks the publisher: when its buffer is full the
delivery is skipped and counted in Dropped.

	broker := events.NewBroker()
	broker.Start()
	defer broker.Stop()

	sub := broker.Subscribe()
	defer broker.Unsubscribe(sub)

	for ev := range sub {
		fmt.Println(ev.Type, ev.Metadata["file_id"])
	}

# Event Types

  - placement.scheduled: a placement was committed (metadata carries
    placement_id, file_id, scheme, nodes, fragment_size, reliability,
    strategy)
  - placement.failed: a decision ended without a placement
  - node.imported, node.removed: inventory changes made through the CLI
*/
package events
