package handler

import (
	"encoding/json"
	"log"

	"bed-manager/internal/config"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

const (
	topicCompleteTransfer = "beds/complete_transfer"
	topicRejectTransfer   = "beds/reject_transfer"
	topicSuggestDischarge = "beds/suggest_discharge"
	topicConfirmDischarge = "beds/confirm_discharge"
	topicCancelDischarge  = "beds/cancel_discharge"
	topicWaitlist         = "beds/waitlist"
)

// BedCommand is the payload on every beds/* topic. Transfer and discharge
// commands carry a bedId, waitlist commands a patientId.
type BedCommand struct {
	HospitalID string `json:"hospitalId"`
	BedID      string `json:"bedId,omitempty"`
	PatientID  string `json:"patientId,omitempty"`
}

func NewMessageHandler(processor *BedProcessor) mqtt.MessageHandler {
	return func(client mqtt.Client, msg mqtt.Message) {
		log.Printf("Received message: %s from topic: %s\n", msg.Payload(), msg.Topic())

		var cmd BedCommand
		if err := json.Unmarshal(msg.Payload(), &cmd); err != nil {
			log.Printf("Error unmarshalling bed command: %v", err)
			return
		}
		if cmd.HospitalID == "" {
			log.Printf("Bed command without hospitalId on topic %s, ignoring", msg.Topic())
			return
		}

		var err error
		switch msg.Topic() {
		case topicCompleteTransfer:
			err = processor.CompleteTransfer(cmd.HospitalID, cmd.BedID)
		case topicRejectTransfer:
			err = processor.RejectTransfer(cmd.HospitalID, cmd.BedID)
		case topicSuggestDischarge:
			err = processor.SuggestDischarge(cmd.HospitalID, cmd.BedID)
		case topicConfirmDischarge:
			err = processor.ConfirmDischarge(cmd.HospitalID, cmd.BedID)
		case topicCancelDischarge:
			err = processor.CancelDischarge(cmd.HospitalID, cmd.BedID)
		case topicWaitlist:
			err = processor.AddToWaitlist(cmd.HospitalID, cmd.PatientID)
		default:
			log.Printf("Unknown topic: %s", msg.Topic())
			return
		}
		if err != nil {
			log.Printf("Error handling command on %s: %v", msg.Topic(), err)
		}
	}
}

var connectHandler mqtt.OnConnectHandler = func(client mqtt.Client) {
	log.Println("Connected to MQTT broker")
	subscribeToTopics(client)
}

var connectLostHandler mqtt.ConnectionLostHandler = func(client mqtt.Client, err error) {
	log.Printf("Connection lost: %v", err)
}

func InitializeMQTT(cfg *config.Config, processor *BedProcessor) (mqtt.Client, error) {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.MQTTBroker)
	opts.SetClientID(cfg.MQTTClientID)
	opts.SetUsername(cfg.MQTTUsername)
	opts.SetPassword(cfg.MQTTPassword)
	opts.SetDefaultPublishHandler(NewMessageHandler(processor))
	opts.OnConnect = connectHandler
	opts.OnConnectionLost = connectLostHandler

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, token.Error()
	}

	return client, nil
}

func subscribeToTopics(client mqtt.Client) {
	topics := []string{
		topicCompleteTransfer,
		topicRejectTransfer,
		topicSuggestDischarge,
		topicConfirmDischarge,
		topicCancelDischarge,
		topicWaitlist,
	}
	for _, topic := range topics {
		token := client.Subscribe(topic, 1, nil)
		token.Wait()
		log.Printf("Subscribed to topic: %s", topic)
	}
}
