package dispatch

import (
	"context"
	"encoding/json"
	"math/rand"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"bcast/internal/model"
	logx "bcast/pkg/logx"
)

// Push event kinds as published by the dispatch engine.
const (
	KindCampaignStatus  = "campaign_status"
	KindRecipientStatus = "recipient_status"
	KindQueueUpdate     = "queue_update"
)

// PushEvent is one decoded message from the status stream. Exactly one of
// the payload pointers is set, matching Kind.
type PushEvent struct {
	Kind      string
	Campaign  *model.CampaignStatusEvent
	Recipient *model.RecipientStatusEvent
	Queue     *model.QueueUpdateEvent
}

// envelope is the wire framing of a push message.
type envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// PushHandler receives decoded events and channel edges.
//
// OnDown fires once per outage, OnUp once per (re)connect; OnUp's
// reconnected flag is false only for the first successful connect of a
// consumer's lifetime. Calls are made from the consumer's single goroutine.
type PushHandler interface {
	OnEvent(ev PushEvent)
	OnDown(err error)
	OnUp(reconnected bool)
}

// PushConsumerConfig configures the AMQP status stream.
type PushConsumerConfig struct {
	URL          string
	Queue        string
	ReconnectMin time.Duration
	ReconnectMax time.Duration
}

// PushConsumer subscribes once per process lifetime and keeps the
// subscription alive across broker outages.
type PushConsumer struct {
	mu  sync.Mutex
	cfg PushConsumerConfig

	handler PushHandler
	log     logx.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewPushConsumer(cfg PushConsumerConfig, handler PushHandler, log logx.Logger) *PushConsumer {
	if cfg.ReconnectMin <= 0 {
		cfg.ReconnectMin = 500 * time.Millisecond
	}
	if cfg.ReconnectMax < cfg.ReconnectMin {
		cfg.ReconnectMax = 30 * time.Second
	}
	return &PushConsumer{cfg: cfg, handler: handler, log: log}
}

// Start launches the consume loop. Calling Start on a running consumer is a
// no-op.
func (p *PushConsumer) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel != nil {
		return
	}
	runCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.run(runCtx)
	}()
}

// Stop tears the subscription down and waits for the loop to exit.
func (p *PushConsumer) Stop(ctx context.Context) {
	p.mu.Lock()
	cancel := p.cancel
	p.cancel = nil
	p.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		// stop continues in background
	}
}

func (p *PushConsumer) run(ctx context.Context) {
	p.mu.Lock()
	cfg := p.cfg
	p.mu.Unlock()

	backoff := cfg.ReconnectMin
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	connected := false
	down := false

	for {
		if ctx.Err() != nil {
			return
		}

		conn, deliveries, err := p.dial(cfg)
		if err != nil {
			if !down {
				down = true
				p.log.Warn("push channel down", logx.Err(err))
				p.handler.OnDown(err)
			}
			wait := backoff + time.Duration(rng.Int63n(int64(backoff/2)+1))
			if backoff < cfg.ReconnectMax {
				backoff *= 2
				if backoff > cfg.ReconnectMax {
					backoff = cfg.ReconnectMax
				}
			}
			select {
			case <-ctx.Done():
				return
			case <-time.After(wait):
				continue
			}
		}

		backoff = cfg.ReconnectMin
		down = false
		p.log.Info("push channel up", logx.Bool("reconnected", connected))
		p.handler.OnUp(connected)
		connected = true

		closeCh := conn.NotifyClose(make(chan *amqp.Error, 1))
		broken := false
		for !broken {
			select {
			case <-ctx.Done():
				_ = conn.Close()
				return
			case amqpErr := <-closeCh:
				broken = true
				var cause error
				if amqpErr != nil {
					cause = amqpErr
				}
				down = true
				p.log.Warn("push channel lost", logx.Err(cause))
				p.handler.OnDown(cause)
			case d, ok := <-deliveries:
				if !ok {
					broken = true
					down = true
					p.log.Warn("push deliveries closed")
					p.handler.OnDown(nil)
					break
				}
				p.decode(d.Body)
			}
		}
		_ = conn.Close()
	}
}

func (p *PushConsumer) dial(cfg PushConsumerConfig) (*amqp.Connection, <-chan amqp.Delivery, error) {
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, nil, err
	}
	if _, err := ch.QueueDeclare(
		cfg.Queue,
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,   // arguments
	); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, nil, err
	}
	// Auto-ack is fine: the stream is at-least-once anyway and a missed
	// event is corrected by the next pull.
	deliveries, err := ch.Consume(cfg.Queue, "", true, false, false, false, nil)
	if err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, nil, err
	}
	return conn, deliveries, nil
}

func (p *PushConsumer) decode(body []byte) {
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		p.log.Warn("push message not decodable", logx.Err(err))
		return
	}
	switch env.Type {
	case KindCampaignStatus:
		var ev model.CampaignStatusEvent
		if err := json.Unmarshal(env.Data, &ev); err != nil {
			p.log.Warn("bad campaign_status payload", logx.Err(err))
			return
		}
		p.handler.OnEvent(PushEvent{Kind: KindCampaignStatus, Campaign: &ev})
	case KindRecipientStatus:
		var ev model.RecipientStatusEvent
		if err := json.Unmarshal(env.Data, &ev); err != nil {
			p.log.Warn("bad recipient_status payload", logx.Err(err))
			return
		}
		p.handler.OnEvent(PushEvent{Kind: KindRecipientStatus, Recipient: &ev})
	case KindQueueUpdate:
		var ev model.QueueUpdateEvent
		if err := json.Unmarshal(env.Data, &ev); err != nil {
			p.log.Warn("bad queue_update payload", logx.Err(err))
			return
		}
		p.handler.OnEvent(PushEvent{Kind: KindQueueUpdate, Queue: &ev})
	default:
		p.log.Debug("ignoring unknown push event", logx.String("type", env.Type))
	}
}
