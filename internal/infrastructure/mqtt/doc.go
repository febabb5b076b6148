// Package mqtt provides the MQTT transport for the climate control service.
//
// This package manages:
//   - Connection to the broker with auto-reconnect
//   - Message publishing with QoS validation
//   - Topic subscriptions with wildcard support, restored on reconnect
//   - A retained availability message with Last Will on mqtt.status_topic
//   - Panic-safe message handlers
//
// # Architecture
//
// Climate devices (or their firmware bridges) expose mode, temperature
// and power topics. Entities subscribe to the state topics and publish
// commands as fire-and-forget messages:
//
//	climate entity ──publish──▶ broker ──▶ device
//	climate entity ◀──subscribe── broker ◀── device
//
// # Security Considerations
//
//   - Enable TLS for brokers reachable beyond localhost (cfg.Broker.TLS=true)
//   - Credentials come from CLIMATE_MQTT_USERNAME / CLIMATE_MQTT_PASSWORD
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	err = client.Subscribe("home/climate/living/temperature/state", 1,
//	    func(topic string, payload []byte) error {
//	        return nil
//	    })
//
//	client.Publish("home/climate/living/temperature/set", []byte("21.5"), 0, false)
package mqtt
