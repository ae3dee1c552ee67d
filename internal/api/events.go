package api

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cardroom/internal/blackjack"
	"cardroom/internal/giveaway"
	"cardroom/internal/hub"
	"cardroom/internal/ledger"
	"cardroom/internal/models"
	"cardroom/internal/poker"

	log "github.com/sirupsen/logrus"
)

// Inbound event types.
const (
	evAuthenticate    = "authenticate"
	evChat            = "chat"
	evSendCoins       = "send_coins"
	evTradeStart      = "trade_start"
	evTradeAccept     = "trade_accept"
	evTradeDecline    = "trade_decline"
	evBlackjackStart  = "blackjack_start"
	evBlackjackAction = "blackjack_action"
	evPokerStart      = "poker_start"
)

// event is the inbound wire frame. Fields are a union over all event types.
type event struct {
	Type    string `json:"type"`
	Token   string `json:"token,omitempty"`
	Text    string `json:"text,omitempty"`
	To      int64  `json:"to,omitempty"`
	Amount  int64  `json:"amount,omitempty"`
	Bet     int64  `json:"bet,omitempty"`
	Action  string `json:"action,omitempty"`
	TradeID int64  `json:"trade_id,omitempty"`
}

// dispatch routes one inbound event. Domain failures are reported to the
// requester only; nothing here may take the session loop or the server down.
func (h *Handler) dispatch(ctx context.Context, connID int64, ev event) {
	if ev.Type == evAuthenticate {
		h.handleAuthenticate(connID, ev)
		return
	}

	userID, ok := h.Registry.UserFor(connID)
	if !ok {
		h.sendError(connID, "login required")
		return
	}

	switch ev.Type {
	case evChat:
		h.handleChat(ctx, connID, userID, ev)
	case evSendCoins:
		h.handleSendCoins(ctx, connID, userID, ev)
	case evTradeStart:
		h.handleTradeStart(connID, userID, ev)
	case evTradeAccept:
		h.handleTradeSettle(connID, ev.TradeID, true)
	case evTradeDecline:
		h.handleTradeSettle(connID, ev.TradeID, false)
	case evBlackjackStart:
		h.handleBlackjackStart(ctx, connID, userID, ev)
	case evBlackjackAction:
		h.handleBlackjackAction(ctx, connID, userID, ev)
	case evPokerStart:
		h.handlePokerStart(ctx, connID, userID, ev)
	default:
		h.sendError(connID, fmt.Sprintf("unknown event type %q", ev.Type))
	}
}

// handleAuthenticate binds the connection to the token's identity. Invalid
// tokens are silently ignored.
func (h *Handler) handleAuthenticate(connID int64, ev event) {
	userID, err := h.Auth.UserIDFromToken(ev.Token)
	if err != nil {
		log.WithField("conn_id", connID).Debugf("ignoring invalid token: %v", err)
		return
	}
	if !h.Ledger.Exists(userID) {
		log.WithField("user_id", userID).Debug("ignoring token for unknown user")
		return
	}

	h.Registry.Bind(connID, userID)

	balance, _ := h.Ledger.Balance(userID)
	name, _ := h.Ledger.Username(userID)
	h.Hub.SendTo(connID, hub.Envelope{Type: hub.TypeAuthOK, Data: models.PlayerSnapshot{
		ID:      userID,
		Name:    name,
		Balance: balance,
	}})
	h.Hub.Announce(fmt.Sprintf("%s joined the table", name))
	h.Hub.Publish()
}

func (h *Handler) handleChat(ctx context.Context, connID, userID int64, ev event) {
	cmd, err := ParseCommand(ev.Text)
	if err != nil {
		h.sendError(connID, err.Error())
		return
	}

	switch cmd.Kind {
	case CmdGiveaway:
		g, err := h.Giveaways.Open(ctx, userID, cmd.Amount)
		if err != nil {
			h.sendError(connID, h.describe(err))
			return
		}
		h.Hub.Announce(fmt.Sprintf("%s started a %d coin giveaway, type /enter to join", g.HostName, g.Amount))
		h.Hub.Publish()
	case CmdEnter:
		if _, err := h.Giveaways.Enter(ctx, userID); err != nil {
			h.sendError(connID, h.describe(err))
			return
		}
		h.Hub.Publish()
	default:
		name, _ := h.Ledger.Username(userID)
		h.Hub.Broadcast(hub.Envelope{Type: hub.TypeChat, Data: hub.ChatMessage{
			From: name,
			Text: cmd.Text,
			At:   time.Now(),
		}})
	}
}

func (h *Handler) handleSendCoins(ctx context.Context, connID, userID int64, ev event) {
	if err := h.Ledger.Transfer(ctx, userID, ev.To, ev.Amount); err != nil {
		h.sendError(connID, h.describe(err))
		return
	}
	to, _ := h.Ledger.Username(ev.To)
	h.Hub.SendTo(connID, hub.Envelope{
		Type: hub.TypeNotice,
		Data: fmt.Sprintf("sent %d coins to %s", ev.Amount, to),
	})
}

func (h *Handler) handleTradeStart(connID, userID int64, ev event) {
	req, err := h.Trades.Start(userID, ev.To)
	if err != nil {
		h.sendError(connID, h.describe(err))
		return
	}
	// The recipient only hears about it if online right now; there is no
	// delivery retry.
	if toConn, online := h.Registry.ConnFor(ev.To); online {
		h.Hub.SendTo(toConn, hub.Envelope{Type: hub.TypeTradeRequest, Data: req})
	}
	h.Hub.SendTo(connID, hub.Envelope{
		Type: hub.TypeNotice,
		Data: fmt.Sprintf("trade request #%d sent", req.ID),
	})
}

func (h *Handler) handleTradeSettle(connID, tradeID int64, accept bool) {
	var req *models.TradeRequest
	var ok bool
	if accept {
		req, ok = h.Trades.Accept(tradeID)
	} else {
		req, ok = h.Trades.Decline(tradeID)
	}
	if !ok {
		// Unknown or already settled requests are a no-op.
		return
	}
	from, _ := h.Ledger.Username(req.FromID)
	to, _ := h.Ledger.Username(req.ToID)
	h.Hub.Announce(fmt.Sprintf("trade #%d between %s and %s was %s", req.ID, from, to, req.Status))
}

func (h *Handler) handleBlackjackStart(ctx context.Context, connID, userID int64, ev event) {
	res, err := h.Blackjack.Start(ctx, userID, ev.Bet)
	if err != nil {
		h.sendError(connID, h.describe(err))
		return
	}
	h.Hub.SendTo(connID, hub.Envelope{Type: hub.TypeBlackjack, Data: res})
}

func (h *Handler) handleBlackjackAction(ctx context.Context, connID, userID int64, ev event) {
	switch ev.Action {
	case "hit":
		res, err := h.Blackjack.Hit(ctx, userID)
		if err != nil {
			if !errors.Is(err, blackjack.ErrNoGame) {
				h.sendError(connID, h.describe(err))
			}
			return
		}
		h.Hub.SendTo(connID, hub.Envelope{Type: hub.TypeBlackjack, Data: res})
	case "stand":
		res, err := h.Blackjack.Stand(ctx, userID)
		if err != nil {
			if !errors.Is(err, blackjack.ErrNoGame) {
				h.sendError(connID, h.describe(err))
			}
			return
		}
		h.Hub.SendTo(connID, hub.Envelope{Type: hub.TypeBlackjack, Data: res})
	default:
		h.sendError(connID, fmt.Sprintf("unknown blackjack action %q", ev.Action))
	}
}

func (h *Handler) handlePokerStart(ctx context.Context, connID, userID int64, ev event) {
	res, err := h.Poker.Play(ctx, userID, ev.Bet)
	if err != nil {
		h.sendError(connID, h.describe(err))
		return
	}
	// The whole table sees every hand and the winner.
	h.Hub.Broadcast(hub.Envelope{Type: hub.TypePokerResult, Data: res})
}

func (h *Handler) sendError(connID int64, msg string) {
	h.Hub.SendTo(connID, hub.Envelope{Type: hub.TypeError, Data: msg})
}

// describe maps domain errors to requester-facing text, hiding internal
// failures behind a generic message.
func (h *Handler) describe(err error) string {
	switch {
	case errors.Is(err, ledger.ErrInvalidAmount),
		errors.Is(err, ledger.ErrInsufficientFunds),
		errors.Is(err, ledger.ErrUnknownUser),
		errors.Is(err, ledger.ErrSelfTransfer),
		errors.Is(err, giveaway.ErrNoActiveGiveaway),
		errors.Is(err, giveaway.ErrAlreadyEntered),
		errors.Is(err, poker.ErrNoEligiblePlayers),
		errors.Is(err, poker.ErrDeckExhausted),
		errors.Is(err, blackjack.ErrGameInProgress):
		return err.Error()
	default:
		log.Errorf("internal error handling event: %v", err)
		return "internal error"
	}
}
