package wdaingestor

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	config "gitlab.com/maplesense1/wda.wearable_server/src/production/WDA.Config"
	"gitlab.com/maplesense1/wda.wearable_server/src/production/WDA.IngestorService/client"
	logger "gitlab.com/maplesense1/wda.wearable_server/src/production/WDA.Logger"
	wdamodels "gitlab.com/maplesense1/wda.wearable_server/src/production/WDA.Models"
	api_models "gitlab.com/maplesense1/wda.wearable_server/src/production/WDA.Models/api"
)

const (
	queueSize        = 4096
	errorTopicPrefix = "ingestor/errors/"
	unknownDevice    = "unknown"
)

// Error types published on the feedback topic
const (
	ErrTypeInvalidTopic = "invalid_topic"
	ErrTypeRejected     = "rejected"
	ErrTypeCircuitOpen  = "circuit_open"
	ErrTypeForward      = "forward_error"
)

// Forwarder delivers a reading to the API; *client.APIClient satisfies it
type Forwarder interface {
	ForwardReading(ctx context.Context, metric client.Metric, deviceID string, payload json.RawMessage) (*api_models.WriteResponse, error)
}

// Stats are the ingestor counters reported by the health endpoint
type Stats struct {
	Received  int64 `json:"received"`
	Forwarded int64 `json:"forwarded"`
	Failed    int64 `json:"failed"`
}

type Ingestor struct {
	cfg        config.IngestorConfig
	forwarder  Forwarder
	mqttClient mqtt.Client
	msgCh      chan wdamodels.SensorMessage
	wg         sync.WaitGroup
	logger     *logger.Logger

	// publish sends error feedback; replaced in tests
	publish func(topic string, payload []byte) error

	closeMu sync.RWMutex
	closed  bool

	received  atomic.Int64
	forwarded atomic.Int64
	failed    atomic.Int64
}

func New(cfg config.IngestorConfig, forwarder Forwarder, log *logger.Logger) *Ingestor {
	i := &Ingestor{
		cfg:       cfg,
		forwarder: forwarder,
		msgCh:     make(chan wdamodels.SensorMessage, queueSize),
		logger:    log.WithComponent("ingestor"),
	}
	i.publish = i.publishMQTT
	return i
}

// Start connects to the broker, subscribes on every (re)connect and starts the batch writer
func (i *Ingestor) Start(ctx context.Context) error {
	mc := i.cfg.MQTT
	opts := mqtt.NewClientOptions().
		AddBroker(i.cfg.GetMQTTBrokerURL()).
		SetClientID(mc.ClientID).
		SetOrderMatters(true).
		SetKeepAlive(mc.KeepAlive).
		SetPingTimeout(mc.PingTimeout).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetCleanSession(false)

	if mc.BrokerUser != "" {
		opts.SetUsername(mc.BrokerUser)
		opts.SetPassword(mc.BrokerPass)
	}

	if mc.UseTLS {
		tlsCfg, err := tlsConfig(mc.CACertPath)
		if err != nil {
			return err
		}
		opts.SetTLSConfig(tlsCfg)
	}

	opts.OnConnectionLost = func(_ mqtt.Client, err error) {
		i.logger.Logger.Error().Err(err).Msg("MQTT connection lost")
	}
	opts.OnConnect = func(c mqtt.Client) {
		topic := SubscriptionTopic(mc.Topic, mc.SharedGroup)
		i.logger.Logger.Info().Str("topic", topic).Msg("MQTT connected, subscribing to topic")
		if token := c.Subscribe(topic, 1, i.onMessage); token.Wait() && token.Error() != nil {
			i.logger.Logger.Error().Err(token.Error()).Str("topic", topic).Msg("Failed to subscribe to MQTT topic")
		}
	}

	i.mqttClient = mqtt.NewClient(opts)
	if tk := i.mqttClient.Connect(); tk.Wait() && tk.Error() != nil {
		return tk.Error()
	}

	i.startWriter(ctx)
	return nil
}

func (i *Ingestor) startWriter(ctx context.Context) {
	i.wg.Add(1)
	go func() {
		defer i.wg.Done()
		i.batchWriter(ctx)
	}()
}

// Stop disconnects from the broker, closes the queue and waits until the writer
// has forwarded or reported every queued reading
func (i *Ingestor) Stop() {
	if i.mqttClient != nil && i.mqttClient.IsConnected() {
		i.mqttClient.Disconnect(500)
	}

	i.closeMu.Lock()
	if !i.closed {
		i.closed = true
		close(i.msgCh)
	}
	i.closeMu.Unlock()

	i.wg.Wait()
}

func (i *Ingestor) IsConnected() bool {
	return i.mqttClient != nil && i.mqttClient.IsConnected()
}

// Stats returns a snapshot of the counters
func (i *Ingestor) Stats() Stats {
	return Stats{
		Received:  i.received.Load(),
		Forwarded: i.forwarded.Load(),
		Failed:    i.failed.Load(),
	}
}

// SubscriptionTopic applies the optional shared subscription group
func SubscriptionTopic(topic, sharedGroup string) string {
	if sharedGroup == "" {
		return topic
	}
	return fmt.Sprintf("$share/%s/%s", sharedGroup, topic)
}

// ParseTopic splits <root>/<deviceId>/<metric>
func ParseTopic(topic string) (string, client.Metric, error) {
	parts := strings.Split(topic, "/")
	if len(parts) != 3 || parts[1] == "" {
		return "", "", fmt.Errorf("invalid topic format: %s, expected: sensors/<deviceId>/<metric>", topic)
	}
	metric, ok := client.ParseMetric(parts[2])
	if !ok {
		return parts[1], "", fmt.Errorf("unknown metric %q in topic %s", parts[2], topic)
	}
	return parts[1], metric, nil
}

func (i *Ingestor) onMessage(_ mqtt.Client, m mqtt.Message) {
	i.received.Add(1)
	i.logger.Logger.Debug().Str("topic", m.Topic()).Str("payload", string(m.Payload())).Msg("Received MQTT message")

	deviceID, metric, err := ParseTopic(m.Topic())
	if err != nil {
		i.failed.Add(1)
		i.logger.Logger.Warn().Str("topic", m.Topic()).Msg("Invalid topic format")
		if deviceID == "" {
			deviceID = unknownDevice
		}
		i.publishError(deviceID, m.Topic(), ErrTypeInvalidTopic, err.Error())
		return
	}

	msg := wdamodels.SensorMessage{
		DeviceID:   deviceID,
		Metric:     string(metric),
		Topic:      m.Topic(),
		Payload:    append(json.RawMessage(nil), m.Payload()...),
		ReceivedAt: time.Now().UTC(),
	}

	i.closeMu.RLock()
	defer i.closeMu.RUnlock()
	if i.closed {
		i.logger.Logger.Warn().Str("topic", m.Topic()).Msg("Ingestor stopped, dropping message")
		return
	}
	i.msgCh <- msg
}

// batchWriter runs until the queue is closed. Once ctx is cancelled, pending
// readings are still forwarded under a context that is no longer cancelled;
// each request stays bounded by the API client timeout.
func (i *Ingestor) batchWriter(ctx context.Context) {
	done := ctx.Done()
	batch := make([]wdamodels.SensorMessage, 0, i.cfg.Batch.Size)
	timer := time.NewTimer(i.cfg.Batch.Window)
	defer timer.Stop()

	flush := func() {
		if len(batch) == 0 {
			return
		}
		i.logger.Logger.Debug().Int("batch_size", len(batch)).Msg("Flushing batch to API Service")

		// In order, one request per reading
		for _, msg := range batch {
			i.forward(ctx, msg)
		}
		batch = batch[:0]
	}

	for {
		select {
		case <-done:
			i.logger.Info("Shutdown requested, draining queued readings")
			ctx = context.WithoutCancel(ctx)
			done = nil
			flush()
		case msg, ok := <-i.msgCh:
			if !ok {
				flush()
				return
			}
			batch = append(batch, msg)
			if len(batch) >= i.cfg.Batch.Size {
				flush()
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(i.cfg.Batch.Window)
			}
		case <-timer.C:
			flush()
			timer.Reset(i.cfg.Batch.Window)
		}
	}
}

func (i *Ingestor) forward(ctx context.Context, msg wdamodels.SensorMessage) {
	log := i.logger.WithDevice(msg.DeviceID)

	resp, err := i.forwarder.ForwardReading(ctx, client.Metric(msg.Metric), msg.DeviceID, msg.Payload)
	if err == nil {
		i.forwarded.Add(1)
		log.Logger.Debug().Str("metric", msg.Metric).Str("outcome", string(resp.Outcome)).Msg("Reading forwarded")
		return
	}

	i.failed.Add(1)
	var rejected *client.RejectedError
	switch {
	case errors.As(err, &rejected):
		log.Logger.Warn().Str("metric", msg.Metric).Str("reason", rejected.Message).Msg("Reading rejected by API")
		i.publishError(msg.DeviceID, msg.Topic, ErrTypeRejected, rejected.Message)
	case errors.Is(err, client.ErrCircuitOpen):
		log.Logger.Warn().Str("metric", msg.Metric).Msg("Circuit open, dropping reading")
		i.publishError(msg.DeviceID, msg.Topic, ErrTypeCircuitOpen, "API service unavailable, reading dropped")
	default:
		log.Logger.Error().Err(err).Str("metric", msg.Metric).Msg("Error forwarding reading to API")
		i.publishError(msg.DeviceID, msg.Topic, ErrTypeForward, fmt.Sprintf("Failed to forward reading: %v", err))
	}
}

func tlsConfig(caFile string) (*tls.Config, error) {
	cfg := &tls.Config{MinVersion: tls.VersionTLS12}
	if caFile == "" {
		return cfg, nil
	}
	ca, err := os.ReadFile(caFile)
	if err != nil {
		return nil, err
	}
	cp := x509.NewCertPool()
	if !cp.AppendCertsFromPEM(ca) {
		return nil, fmt.Errorf("bad CA file")
	}
	cfg.RootCAs = cp
	return cfg, nil
}

// publishError publishes an error message to the error topic for device feedback
func (i *Ingestor) publishError(deviceID, topic, errorType, message string) {
	payload, err := json.Marshal(wdamodels.IngestError{
		ErrorType: errorType,
		Message:   message,
		DeviceID:  deviceID,
		Topic:     topic,
		Timestamp: time.Now().UTC(),
	})
	if err != nil {
		i.logger.Logger.Error().Err(err).Msg("Failed to marshal error payload")
		return
	}

	errorTopic := errorTopicPrefix + deviceID
	if err := i.publish(errorTopic, payload); err != nil {
		i.logger.Logger.Error().Err(err).Str("topic", errorTopic).Msg("Failed to publish error")
		return
	}
	i.logger.Logger.Info().Str("topic", errorTopic).Str("message", message).Msg("Published error")
}

func (i *Ingestor) publishMQTT(topic string, payload []byte) error {
	if i.mqttClient == nil || !i.mqttClient.IsConnected() {
		return errors.New("mqtt client not connected")
	}
	token := i.mqttClient.Publish(topic, 1, false, payload)
	if token.Wait() && token.Error() != nil {
		return token.Error()
	}
	return nil
}
