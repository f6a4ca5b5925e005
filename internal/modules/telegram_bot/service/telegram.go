package service

import (
	"context"
	"strings"
	"sync"

	tgbot "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"fvg_bot/internal/models"
	"fvg_bot/pkg/logger"
)

// Bot is the subset of *tgbot.BotAPI used here.
type Bot interface {
	Send(c tgbot.Chattable) (tgbot.Message, error)
	Request(c tgbot.Chattable) (*tgbot.APIResponse, error)
	GetUpdatesChan(config tgbot.UpdateConfig) tgbot.UpdatesChannel
	StopReceivingUpdates()
}

// Controller is what an operator can drive from the chat.
type Controller interface {
	Snapshot() models.EngineState
	Confirm(id string, accepted bool) error
	SetTradingEnabled(enabled bool, reason string)
}

const (
	verbConfirm = "CONF"
	verbReject  = "REJ"
	queueSize   = 64
)

type prompt struct {
	msgID int
	text  string
}

// Telegram mirrors signals into a chat with confirm/reject buttons and relays
// the answers to the controller. Publish never blocks the engine.
type Telegram struct {
	bot    Bot
	chatID int64
	ctl    Controller

	queue chan models.Event

	mu      sync.Mutex
	prompts map[string]prompt

	wg   sync.WaitGroup
	stop context.CancelFunc
}

func NewTelegram(bot Bot, chatID int64, ctl Controller) *Telegram {
	return &Telegram{
		bot:     bot,
		chatID:  chatID,
		ctl:     ctl,
		queue:   make(chan models.Event, queueSize),
		prompts: make(map[string]prompt),
	}
}

func (t *Telegram) Publish(ev models.Event) {
	switch ev.Type {
	case models.EventEntrySignal, models.EventExitSignal,
		models.EventSignalResolved, models.EventSignalTimeout,
		models.EventTradeExecuted, models.EventTradeFailed,
		models.EventRiskVeto, models.EventTradingStatus:
	default:
		return
	}
	select {
	case t.queue <- ev:
	default:
		logger.Warn("[TG] queue full, dropped %s", ev.Type)
	}
}

// Start runs the sender and the long-polling loop until ctx ends or Stop.
func (t *Telegram) Start(ctx context.Context) {
	ctx, t.stop = context.WithCancel(ctx)

	t.wg.Add(2)
	go func() {
		defer t.wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case ev := <-t.queue:
				t.handleEvent(ev)
			}
		}
	}()

	u := tgbot.NewUpdate(0)
	u.Timeout = 30
	u.AllowedUpdates = []string{"message", "callback_query"}
	updates := t.bot.GetUpdatesChan(u)

	go func() {
		defer t.wg.Done()
		for {
			select {
			case <-ctx.Done():
				t.bot.StopReceivingUpdates()
				return
			case upd, ok := <-updates:
				if !ok {
					return
				}
				t.handleUpdate(upd)
			}
		}
	}()
}

func (t *Telegram) Stop() {
	if t.stop != nil {
		t.stop()
	}
	t.wg.Wait()
}

func (t *Telegram) handleUpdate(upd tgbot.Update) {
	if cb := upd.CallbackQuery; cb != nil {
		t.HandleCallback(cb)
		return
	}
	msg := upd.Message
	if msg == nil || msg.Chat == nil || msg.Chat.ID != t.chatID || !msg.IsCommand() {
		return
	}
	switch msg.Command() {
	case "status", "start":
		t.send(formatStatus(t.ctl.Snapshot()))
	case "pause":
		t.ctl.SetTradingEnabled(false, "telegram")
	case "resume":
		t.ctl.SetTradingEnabled(true, "telegram")
	default:
		t.send("/status /pause /resume")
	}
}

func (t *Telegram) handleEvent(ev models.Event) {
	switch p := ev.Payload.(type) {
	case models.Signal:
		t.ask(p)
	case models.SignalOutcomePayload:
		t.settle(p)
	case models.Trade:
		t.send(formatTrade(p))
	case models.TradeFailedPayload:
		t.send("❗️ order failed: " + p.Reason)
	case models.VetoPayload:
		t.send(formatVeto(p))
	case models.TradingStatusPayload:
		t.send(formatTradingStatus(p))
	}
}

// ask posts the signal with CONF::id / REJ::id buttons.
func (t *Telegram) ask(sig models.Signal) {
	text := formatSignal(sig)
	yes := tgbot.NewInlineKeyboardButtonData("✅ Confirm", verbConfirm+"::"+sig.ID)
	no := tgbot.NewInlineKeyboardButtonData("❌ Reject", verbReject+"::"+sig.ID)
	msg := tgbot.NewMessage(t.chatID, text)
	msg.ReplyMarkup = tgbot.NewInlineKeyboardMarkup(tgbot.NewInlineKeyboardRow(yes, no))

	sent, err := t.bot.Send(msg)
	if err != nil {
		logger.Error("[TG] send signal %s: %v", sig.ID, err)
		return
	}
	t.mu.Lock()
	t.prompts[sig.ID] = prompt{msgID: sent.MessageID, text: text}
	t.mu.Unlock()
}

// settle rewrites the prompt with the outcome and drops the buttons.
func (t *Telegram) settle(p models.SignalOutcomePayload) {
	t.mu.Lock()
	pr, ok := t.prompts[p.Signal.ID]
	delete(t.prompts, p.Signal.ID)
	t.mu.Unlock()
	if !ok {
		return
	}
	_ = t.editReplyMarkupRemove(pr.msgID)
	_ = t.editText(pr.msgID, pr.text+"\n\n"+formatOutcome(p))
}

func (t *Telegram) HandleCallback(cb *tgbot.CallbackQuery) {
	if cb == nil {
		return
	}
	// stops the client spinner
	_, _ = t.bot.Request(tgbot.NewCallback(cb.ID, ""))

	verb, id, ok := strings.Cut(cb.Data, "::")
	if !ok || id == "" || (verb != verbConfirm && verb != verbReject) {
		return
	}
	if err := t.ctl.Confirm(id, verb == verbConfirm); err != nil {
		logger.Warn("[TG] %s %s: %v", verb, id, err)
		t.send("⚠️ " + err.Error())
	}
}

func (t *Telegram) send(text string) {
	if _, err := t.bot.Send(tgbot.NewMessage(t.chatID, text)); err != nil {
		logger.Error("[TG] send: %v", err)
	}
}

func (t *Telegram) editReplyMarkupRemove(msgID int) error {
	rm := tgbot.InlineKeyboardMarkup{InlineKeyboard: [][]tgbot.InlineKeyboardButton{}}
	_, err := t.bot.Request(tgbot.NewEditMessageReplyMarkup(t.chatID, msgID, rm))
	return err
}

func (t *Telegram) editText(msgID int, text string) error {
	_, err := t.bot.Request(tgbot.NewEditMessageText(t.chatID, msgID, text))
	return err
}
