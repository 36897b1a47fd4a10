package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/nerrad567/medminder/internal/infrastructure/logging"
	"github.com/nerrad567/medminder/internal/infrastructure/mqtt"
	"github.com/nerrad567/medminder/internal/medication"
)

// subscriber is the part of the MQTT client used for inbound traffic.
type subscriber interface {
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
}

// subscribeServices routes the inbound service topics and tag scans to svc.
// Handlers run one at a time on the MQTT client's inbound worker; their
// errors are logged there.
func subscribeServices(ctx context.Context, sub subscriber, svc *medication.Service, qos byte, log *logging.Logger) error {
	topics := mqtt.Topics{}
	handlers := map[string]mqtt.MessageHandler{
		topics.ServiceRecordDose():      recordDoseHandler(ctx, svc, log),
		topics.ServiceUpdateInventory(): updateInventoryHandler(ctx, svc, log),
		topics.TagScanned():             tagScannedHandler(svc, log),
	}
	for topic, h := range handlers {
		if err := sub.Subscribe(topic, qos, h); err != nil {
			return fmt.Errorf("subscribing to %s: %w", topic, err)
		}
		log.Debug("subscribed", "topic", topic)
	}
	return nil
}

func recordDoseHandler(ctx context.Context, svc *medication.Service, log *logging.Logger) mqtt.MessageHandler {
	return func(_ string, payload []byte) error {
		req, err := medication.DecodeServiceRequest(payload)
		if err != nil {
			return err
		}
		res, err := svc.RecordDose(ctx, req, medication.SourceMQTT)
		if err != nil {
			return err
		}
		log.Debug("record_dose handled",
			"entry_id", res.State.EntryID,
			"medication_id", res.State.ID,
			"recorded", res.Recorded,
		)
		return nil
	}
}

func updateInventoryHandler(ctx context.Context, svc *medication.Service, log *logging.Logger) mqtt.MessageHandler {
	return func(_ string, payload []byte) error {
		req, err := medication.DecodeServiceRequest(payload)
		if err != nil {
			return err
		}
		st, err := svc.UpdateInventory(ctx, req, medication.SourceMQTT)
		if err != nil {
			return err
		}
		log.Debug("update_inventory handled", "entry_id", st.EntryID, "medication_id", st.ID, "inventory", st.Inventory)
		return nil
	}
}

func tagScannedHandler(svc *medication.Service, log *logging.Logger) mqtt.MessageHandler {
	return func(_ string, payload []byte) error {
		tag := scannedTag(payload)
		if tag == "" {
			return fmt.Errorf("%w: tag scan without a tag id", medication.ErrInvalidRequest)
		}
		if n := svc.TagScanned(tag); n == 0 {
			log.Warn("tag scan not queued", "entries", len(svc.Managers()))
		}
		return nil
	}
}

// scannedTag accepts either a JSON body carrying tag_id/nfc_id or the bare
// tag identifier as the whole payload.
func scannedTag(payload []byte) string {
	if req, err := medication.DecodeServiceRequest(payload); err == nil {
		return req.TagID
	}
	return strings.Trim(strings.TrimSpace(string(payload)), `"`)
}
