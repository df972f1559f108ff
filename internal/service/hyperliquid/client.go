package hyperliquid

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strconv"
	"time"

	"WalletPulse/internal/domain/models"
	drepo "WalletPulse/internal/domain/repository"

	"github.com/gorilla/websocket"
)

// Client implements a PositionStream backed by the Hyperliquid WebSocket API.
// One webData2 subscription per tracked wallet; each pushed clearinghouse
// state fans out into one observation per tracked instrument.
type Client struct {
	websocketURL   string
	wallets        []string
	instruments    map[string]bool
	reconnectDelay time.Duration
	pingInterval   time.Duration

	conn      *websocket.Conn
	connected bool
}

// New creates a new Hyperliquid PositionStream.
func New(websocketURL string, wallets, instruments []string, reconnectDelay, pingInterval time.Duration) drepo.PositionStream {
	instr := make(map[string]bool, len(instruments))
	for _, i := range instruments {
		instr[i] = true
	}
	return &Client{
		websocketURL:   websocketURL,
		wallets:        wallets,
		instruments:    instr,
		reconnectDelay: reconnectDelay,
		pingInterval:   pingInterval,
	}
}

// Connect establishes the WebSocket connection.
func (c *Client) Connect(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.websocketURL, nil)
	if err != nil {
		return fmt.Errorf("hyperliquid connect: %w", err)
	}
	c.conn = conn
	c.connected = true
	log.Printf("hyperliquid: connected")
	return nil
}

// Subscribe subscribes to the clearinghouse state of each tracked wallet.
func (c *Client) Subscribe(ctx context.Context) error {
	if c.conn == nil || !c.connected {
		return fmt.Errorf("hyperliquid not connected")
	}
	for _, w := range c.wallets {
		msg := map[string]interface{}{
			"method": "subscribe",
			"subscription": map[string]string{
				"type": "webData2",
				"user": w,
			},
		}
		if err := c.conn.WriteJSON(msg); err != nil {
			return fmt.Errorf("subscribe %s: %w", w, err)
		}
	}
	log.Printf("hyperliquid: subscribed wallets=%d", len(c.wallets))
	return nil
}

type hlPosition struct {
	Position struct {
		Coin string `json:"coin"`
		Szi  string `json:"szi"`
	} `json:"position"`
}

type hlClearinghouse struct {
	AssetPositions []hlPosition `json:"assetPositions"`
	Time           int64        `json:"time"` // ms
}

type hlMessage struct {
	Channel string `json:"channel"`
	Data    struct {
		User               string          `json:"user"`
		ClearinghouseState hlClearinghouse `json:"clearinghouseState"`
	} `json:"data"`
}

// Read streams position observations and errors.
func (c *Client) Read(ctx context.Context) (<-chan *models.PositionObservation, <-chan error) {
	obs := make(chan *models.PositionObservation, 1024)
	errs := make(chan error, 1)

	// ping loop
	go func() {
		ticker := time.NewTicker(c.pingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if c.conn != nil {
					_ = c.conn.WriteMessage(websocket.PingMessage, nil)
				}
			}
		}
	}()

	// read loop
	go func() {
		defer close(obs)
		defer close(errs)
		for {
			select {
			case <-ctx.Done():
				return
			default:
				if c.conn == nil {
					errs <- fmt.Errorf("hyperliquid conn nil")
					return
				}
				_, b, err := c.conn.ReadMessage()
				if err != nil {
					errs <- fmt.Errorf("hyperliquid read: %w", err)
					return
				}
				var m hlMessage
				if err := json.Unmarshal(b, &m); err != nil {
					// ignore non-data frames
					continue
				}
				if m.Channel != "webData2" || m.Data.User == "" {
					continue
				}
				for _, o := range c.toObservations(&m) {
					select {
					case obs <- o:
					default:
						// drop on backpressure
					}
				}
			}
		}
	}()

	return obs, errs
}

func (c *Client) toObservations(m *hlMessage) []*models.PositionObservation {
	return expandClearinghouse(m.Data.User, &m.Data.ClearinghouseState, c.instruments)
}

// expandClearinghouse expands one clearinghouse state into per-instrument
// observations. Tracked instruments without an open position get an explicit
// zero row so downstream can tell flat from missing; unparseable sizes become
// invalid rows for the same reason.
func expandClearinghouse(user string, st *hlClearinghouse, instruments map[string]bool) []*models.PositionObservation {
	ts := time.Now().UTC()
	if st.Time > 0 {
		ts = time.UnixMilli(st.Time).UTC()
	}
	period := drepo.FloorPeriod(ts)

	out := make([]*models.PositionObservation, 0, len(instruments))
	seen := make(map[string]bool, len(st.AssetPositions))
	for _, p := range st.AssetPositions {
		coin := p.Position.Coin
		if !instruments[coin] {
			continue
		}
		seen[coin] = true
		o := &models.PositionObservation{
			PeriodTS:   period,
			Subject:    user,
			Instrument: coin,
		}
		if szi, err := strconv.ParseFloat(p.Position.Szi, 64); err == nil {
			o.SignedSize = szi
			o.Valid = true
		}
		out = append(out, o)
	}
	for coin := range instruments {
		if seen[coin] {
			continue
		}
		out = append(out, &models.PositionObservation{
			PeriodTS:   period,
			Subject:    user,
			Instrument: coin,
			SignedSize: 0,
			Valid:      true,
		})
	}
	return out
}

// Reconnect closes and reconnects.
func (c *Client) Reconnect(ctx context.Context) error {
	_ = c.Close()
	time.Sleep(c.reconnectDelay)
	if err := c.Connect(ctx); err != nil {
		return err
	}
	return c.Subscribe(ctx)
}

// Close closes the WS connection.
func (c *Client) Close() error {
	c.connected = false
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

// IsConnected indicates status.
func (c *Client) IsConnected() bool { return c.connected }
