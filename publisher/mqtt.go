package publisher

import (
	"fmt"
	"time"

	"EyeTrackServer/config"
	"EyeTrackServer/engine"
	iface "EyeTrackServer/interface"
	"EyeTrackServer/logger"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const publishTimeout = 5 * time.Second

// MQTT publishes a BlinkEvent for every counted blink.
type MQTT struct {
	client mqtt.Client
	topic  string
	qos    byte
}

func NewMQTT(cfg config.MQTT) (*MQTT, error) {
	clientID := cfg.ClientID
	if clientID == "" {
		clientID = "eyetrack-" + uuid.NewString()
	}
	opts := mqtt.NewClientOptions().AddBroker(cfg.Broker).SetClientID(clientID)
	opts.SetAutoReconnect(true)
	opts.SetConnectTimeout(10 * time.Second)
	opts.OnConnect = func(mqtt.Client) {
		logger.Log().Info("Connected to MQTT", zap.String("broker", cfg.Broker), zap.String("clientID", clientID))
	}
	opts.OnConnectionLost = func(_ mqtt.Client, err error) {
		logger.Log().Warn("MQTT connection lost", zap.Error(err))
	}
	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("mqtt connect %s: %w", cfg.Broker, token.Error())
	}
	return newMQTT(client, cfg.Topic, cfg.QoS), nil
}

func newMQTT(client mqtt.Client, topic string, qos byte) *MQTT {
	return &MQTT{client: client, topic: topic, qos: qos}
}

func (p *MQTT) FrameProcessed(sessionID string, m engine.FrameMetrics) {
	if !m.Blinked {
		return
	}
	payload, err := json.Marshal(iface.NewBlinkEvent(sessionID, m))
	if err != nil {
		logger.Log().Error("Encode blink event", zap.Error(err))
		return
	}
	token := p.client.Publish(p.topic, p.qos, false, payload)
	go func() {
		if !token.WaitTimeout(publishTimeout) {
			logger.Log().Warn("Blink event publish timed out", zap.String("ID", sessionID))
			return
		}
		if err := token.Error(); err != nil {
			logger.Log().Error("Blink event publish failed", zap.String("ID", sessionID), zap.Error(err))
		}
	}()
}

func (p *MQTT) Close() {
	p.client.Disconnect(250)
}
