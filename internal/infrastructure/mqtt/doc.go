// Package mqtt connects the Waze bridge to the Gray Logic message bus.
//
// The bridge publishes retained sensor state and health, answers requests,
// and listens for entity states published by the core:
//
//	graylogic/state/waze/{sensor_id}            retained sensor state
//	graylogic/config/waze/{sensor_id}           option updates
//	graylogic/request/waze/{sensor_id}          refresh / get_state
//	graylogic/response/waze/{request_id}        request responses
//	graylogic/health/waze                       retained health
//	graylogic/core/entity/{entity_id}/state     tracked entity states
//	graylogic/system/{client_id}/status         online/offline (LWT)
//
// The connection reconnects automatically and restores subscriptions.
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
package mqtt
