// Package mqttlite provides a compact MQTT 3.1.1 client protocol engine.
//
// This package implements the client side of the MQTT Version 3.1.1 OASIS Standard:
// https://docs.oasis-open.org/mqtt/mqtt/v3.1.1/mqtt-v3.1.1.html
//
// # Features
//
//   - All 14 MQTT 3.1.1 control packet types
//   - QoS 0, 1, 2 publish flows in both directions
//   - Bounded request table with timeouts and retransmission
//   - Keep-alive with round-trip measurement
//   - Topic name and filter validation, wildcard matching (+, #)
//   - Transport: TCP, TLS, WebSocket, WSS, QUIC, Unix socket, HTTP and SOCKS5 proxies
//
// # Engine
//
// Client is a sans-IO state machine. It never blocks and never starts
// goroutines. The caller owns the connection and reports its progress
// through Opened, Received, Sent, Closed and Tick. The engine asks for
// bytes to be written through the Transport it was created with.
//
//	client, err := mqttlite.NewClient(transport,
//	    mqttlite.WithMaxRequests(8),
//	    mqttlite.WithRequestTimeout(10*time.Second),
//	)
//
// All methods of a Client must be called from one goroutine.
//
// # Runner
//
// Runner drives a Client over a Dialer from a single goroutine and is safe
// for concurrent use:
//
//	runner, err := mqttlite.NewRunner(ctx, &mqttlite.TCPDialer{Timeout: 5 * time.Second})
//	defer runner.Close()
//
//	info := mqttlite.ClientInfo{ID: "my-client", KeepAlive: 60 * time.Second}
//	err = runner.ConnectAndWait(ctx, "localhost", mqttlite.DefaultPortTCP, info, handler)
//
//	err = runner.Subscribe("sensors/#", 1, nil)
//	err = runner.Publish("sensors/temp", []byte("21.5"), 1, false, nil)
//
// # Events
//
// Results are delivered to the EventHandler passed to Connect. Every request
// completes with exactly one event:
//
//	func handler(c *mqttlite.Client, e mqttlite.Event) {
//	    switch ev := e.(type) {
//	    case *mqttlite.ConnectEvent:
//	        // ev.Status
//	    case *mqttlite.PublishRecvEvent:
//	        // ev.Topic, ev.Payload
//	    case *mqttlite.PublishEvent:
//	        // ev.Err is nil once the broker acknowledged delivery
//	    case *mqttlite.DisconnectEvent:
//	        // ev.Err is nil after a requested disconnect
//	    }
//	}
//
// # Packets
//
// Packet types are exported for tooling and tests. Use ReadPacket and
// WritePacket with blocking connections, or a Decoder for partial input:
//
//	pkt, n, err := mqttlite.ReadPacket(conn, maxPacketSize)
//	n, err := mqttlite.WritePacket(conn, packet, maxPacketSize)
package mqttlite
