// Package mqtt provides MQTT client connectivity for medminder.
//
// This package manages:
//   - Connection to the broker with auto-reconnect
//   - Publishing with QoS guarantees
//   - Subscriptions that survive reconnects
//   - A bounded inbound queue, so handlers never run on paho's router
//   - Last Will and Testament (LWT) for offline detection
//
// MQTT is both the outbound sink (notifications, events, retained state) and
// an inbound service surface (record_dose, update_inventory, tag_scanned).
//
//	medminder ↔ MQTT Broker ↔ home automation, panels, NFC readers
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	err = client.Subscribe(mqtt.Topics{}.ServiceRecordDose(), 1, handler)
//	err = client.PublishJSON(mqtt.Topics{}.Notify(), n, false)
//
// TLS should be enabled (broker.tls) whenever the broker is not on localhost.
package mqtt
