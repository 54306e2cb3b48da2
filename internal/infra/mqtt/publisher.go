package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"sync/atomic"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/batfi/batfi/internal/domain"
)

// DefaultTopic is used when no topic pattern is configured.
const DefaultTopic = "batfi/{battery}/state"

// publishTimeout bounds how long a single publish may wait for the broker.
const publishTimeout = 5 * time.Second

// broker is the subset of paho.Client the publisher needs.
type broker interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token
	IsConnected() bool
}

// PublisherConfig holds topic and delivery settings.
type PublisherConfig struct {
	Topic    string // e.g. "batfi/{battery}/state"
	QoS      byte
	Retained bool
	Buffer   int
}

// Publisher drains a snapshot queue into the broker.
type Publisher struct {
	client   broker
	topic    string
	qos      byte
	retained bool
	queue    chan *domain.BatteryInfo
	dropped  atomic.Uint64
}

// NewPublisher creates a publisher over a connected client.
func NewPublisher(client *Client, cfg PublisherConfig) *Publisher {
	return newPublisher(client.Native(), cfg)
}

func newPublisher(b broker, cfg PublisherConfig) *Publisher {
	if cfg.Topic == "" {
		cfg.Topic = DefaultTopic
	}
	if cfg.Buffer < 1 {
		cfg.Buffer = 16
	}
	if cfg.QoS > 2 {
		cfg.QoS = 1
	}
	return &Publisher{
		client:   b,
		topic:    cfg.Topic,
		qos:      cfg.QoS,
		retained: cfg.Retained,
		queue:    make(chan *domain.BatteryInfo, cfg.Buffer),
	}
}

// Enqueue hands a snapshot to the publish loop without blocking. When the
// queue is full the snapshot is dropped and false is returned.
func (p *Publisher) Enqueue(info *domain.BatteryInfo) bool {
	select {
	case p.queue <- info:
		return true
	default:
		p.dropped.Add(1)
		return false
	}
}

// Dropped returns how many snapshots were discarded on a full queue.
func (p *Publisher) Dropped() uint64 { return p.dropped.Load() }

// Start publishes queued snapshots until ctx is cancelled. Snapshots still
// queued at cancellation are published before it returns.
func (p *Publisher) Start(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			p.drain()
			return
		case info := <-p.queue:
			p.send(info)
		}
	}
}

// drain publishes whatever is queued without waiting for more.
func (p *Publisher) drain() {
	for {
		select {
		case info := <-p.queue:
			p.send(info)
		default:
			return
		}
	}
}

func (p *Publisher) send(info *domain.BatteryInfo) {
	if err := p.Publish(info); err != nil {
		log.Printf("[mqtt] %v", err)
	}
}

// Publish sends one snapshot synchronously.
func (p *Publisher) Publish(info *domain.BatteryInfo) error {
	if !p.client.IsConnected() {
		return fmt.Errorf("publish %s: %w", info.Name, domain.ErrNotConnected)
	}

	payload, err := json.Marshal(info)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	topic := Topic(p.topic, info.Name)
	token := p.client.Publish(topic, p.qos, p.retained, payload)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("publish to %s: timed out", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish to %s: %w", topic, err)
	}
	return nil
}

// Topic replaces the {battery} placeholder with the battery name.
func Topic(pattern, battery string) string {
	return strings.ReplaceAll(pattern, "{battery}", battery)
}
