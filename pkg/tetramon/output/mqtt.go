package output

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog/log"

	"github.com/norasector/tetramon/pkg/tetra"
	"github.com/norasector/tetramon/pkg/tetramon/config"
)

const (
	connectTimeout = 10 * time.Second
	publishTimeout = 5 * time.Second
)

type publishFunc func(topic string, payload []byte) error

// MQTTOutput publishes each message as JSON to a broker topic.
type MQTTOutput struct {
	cfg      config.MQTT
	recvChan chan *tetra.MessageRecord
	client   mqtt.Client
	publish  publishFunc
}

func NewMQTTOutput(cfg config.MQTT) *MQTTOutput {
	return &MQTTOutput{
		cfg:      cfg,
		recvChan: make(chan *tetra.MessageRecord, receiveChannels),
	}
}

func (o *MQTTOutput) Receive() chan<- *tetra.MessageRecord {
	return o.recvChan
}

func (o *MQTTOutput) connect() error {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(o.cfg.Broker)
	opts.SetClientID(o.cfg.ClientID)
	opts.SetAutoReconnect(true)
	opts.SetMaxReconnectInterval(time.Minute)
	opts.SetKeepAlive(60 * time.Second)
	opts.SetConnectionLostHandler(func(client mqtt.Client, err error) {
		log.Warn().Err(err).Str("broker", o.cfg.Broker).Msg("mqtt connection lost")
	})

	o.client = mqtt.NewClient(opts)
	token := o.client.Connect()
	if !token.WaitTimeout(connectTimeout) {
		return fmt.Errorf("connecting to mqtt broker %s timed out", o.cfg.Broker)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("connecting to mqtt broker: %w", err)
	}
	log.Info().Str("broker", o.cfg.Broker).Str("topic", o.cfg.Topic).Msg("mqtt output starting")

	o.publish = func(topic string, payload []byte) error {
		token := o.client.Publish(topic, 1, false, payload)
		if !token.WaitTimeout(publishTimeout) {
			return fmt.Errorf("publish to %s timed out", topic)
		}
		return token.Error()
	}
	return nil
}

func (o *MQTTOutput) Start(ctx context.Context) error {
	if o.publish == nil {
		if err := o.connect(); err != nil {
			return err
		}
	}
	if o.client != nil {
		defer o.client.Disconnect(250)
	}

	for {
		select {
		case <-ctx.Done():
			for {
				select {
				case rec := <-o.recvChan:
					o.send(rec)
				default:
					return ctx.Err()
				}
			}
		case rec := <-o.recvChan:
			o.send(rec)
		}
	}
}

func (o *MQTTOutput) send(rec *tetra.MessageRecord) {
	payload, err := json.Marshal(rec)
	if err != nil {
		log.Warn().Err(err).Str("id", rec.ID).Msg("error encoding message")
		return
	}
	if err := o.publish(o.cfg.Topic, payload); err != nil {
		log.Warn().Err(err).Str("id", rec.ID).Msg("error publishing message")
	}
}
