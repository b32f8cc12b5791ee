// Package mqtt provides MQTT client connectivity for CommuteCompute Core.
//
// This package manages:
//   - Connection to Mosquitto broker with auto-reconnect
//   - Message publishing with QoS guarantees
//   - Topic subscriptions with wildcard support
//   - Last Will and Testament (LWT) for offline detection
//   - Connection health monitoring
//
// # Architecture
//
// CommuteCompute uses MQTT as an optional event surface: the Core announces
// zone content changes, device checkins, and pairing completions so that
// home-automation systems and monitoring tooling can react without polling
// the HTTP API.
//
//	CommuteCompute Core → MQTT Broker → Subscribers (automation, dashboards)
//
// # Security Considerations
//
//   - TLS is required for production deployments (cfg.Broker.TLS=true)
//   - Credentials are validated against broker ACL
//   - Anonymous access is only for local development
//   - Message payloads are not encrypted beyond TLS transport
//
// # Performance Characteristics
//
//   - Connection: <1 second to local broker
//   - Publish latency: <10ms for QoS 1 to local broker
//   - Reconnect: Exponential backoff 1s-60s with jitter
//   - Message throughput: Broker-limited (typically 10K+ msg/sec)
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	// Subscribe to all zone content updates
//	err = client.Subscribe(mqtt.Topics{}.AllZoneUpdates(), 1,
//	    func(topic string, payload []byte) error {
//	        log.Printf("Received: %s = %s", topic, payload)
//	        return nil
//	    })
//
//	// Publish a zone update announcement
//	topic := mqtt.Topics{}.ZoneUpdate("header")
//	client.Publish(topic, []byte(`{"fingerprint":"00aabbccddeeff11"}`), 1, false)
package mqtt
