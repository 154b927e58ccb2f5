package notify

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	_ "github.com/mattn/go-sqlite3"
	"github.com/mdp/qrterminal/v3"
	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/store"
	"go.mau.fi/whatsmeow/store/sqlstore"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"
	waLog "go.mau.fi/whatsmeow/util/log"
	"google.golang.org/protobuf/proto"

	"github.com/danielolaszy/prwatch/internal/logging"
)

// ErrNotPaired is returned when the device store holds no linked session.
var ErrNotPaired = errors.New("whatsapp device is not paired, run `prwatch whatsapp login` first")

// WhatsAppConfig locates the device store and the message recipient.
type WhatsAppConfig struct {
	// StoreDSN is a sqlite3 DSN for the whatsmeow device store.
	StoreDSN string
	// Recipient is a user or group JID, e.g. 15551234567@s.whatsapp.net.
	Recipient string
	// DeviceName is shown in the phone's linked devices list.
	DeviceName string
}

// WhatsApp sends messages from a linked device session.
type WhatsApp struct {
	client    *whatsmeow.Client
	container *sqlstore.Container
	recipient types.JID

	mu        sync.Mutex
	connected bool
}

// NewWhatsApp opens the device store. It does not connect; that happens on
// the first Send or on Login.
func NewWhatsApp(ctx context.Context, cfg WhatsAppConfig) (*WhatsApp, error) {
	var recipient types.JID
	if cfg.Recipient != "" {
		jid, err := types.ParseJID(cfg.Recipient)
		if err != nil {
			return nil, fmt.Errorf("invalid whatsapp recipient %s: %w", cfg.Recipient, err)
		}
		recipient = jid
	}

	container, err := sqlstore.New(ctx, "sqlite3", cfg.StoreDSN, slogWALogger{l: logging.GetLogger().With("module", "whatsmeow-db")})
	if err != nil {
		return nil, fmt.Errorf("failed to open whatsapp device store: %w", err)
	}

	device, err := container.GetFirstDevice(ctx)
	if err != nil {
		container.Close()
		return nil, fmt.Errorf("failed to load whatsapp device: %w", err)
	}

	if cfg.DeviceName == "" {
		cfg.DeviceName = "prwatch"
	}
	store.SetOSInfo(cfg.DeviceName, [3]uint32{0, 1, 0})

	client := whatsmeow.NewClient(device, slogWALogger{l: logging.GetLogger().With("module", "whatsmeow")})
	return &WhatsApp{client: client, container: container, recipient: recipient}, nil
}

func (w *WhatsApp) Name() string { return "whatsapp" }

// Send delivers text to the configured recipient, connecting first if needed.
func (w *WhatsApp) Send(ctx context.Context, text string) error {
	if w.recipient.IsEmpty() {
		return errors.New("no whatsapp recipient configured")
	}
	if err := w.connect(ctx); err != nil {
		return err
	}

	_, err := w.client.SendMessage(ctx, w.recipient, &waE2E.Message{
		Conversation: proto.String(text),
	})
	if err != nil {
		return fmt.Errorf("failed to send whatsapp message: %w", err)
	}
	return nil
}

func (w *WhatsApp) connect(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.connected && w.client.IsConnected() {
		return nil
	}
	if w.client.Store.ID == nil {
		return ErrNotPaired
	}

	ready := make(chan struct{}, 1)
	handler := w.client.AddEventHandler(func(evt any) {
		if _, ok := evt.(*events.Connected); ok {
			select {
			case ready <- struct{}{}:
			default:
			}
		}
	})
	defer w.client.RemoveEventHandler(handler)

	if err := w.client.Connect(); err != nil {
		return fmt.Errorf("failed to connect to whatsapp: %w", err)
	}

	select {
	case <-ready:
	case <-ctx.Done():
		return fmt.Errorf("waiting for whatsapp connection: %w", ctx.Err())
	}

	w.connected = true
	logging.Info("connected to whatsapp", "device", w.client.Store.ID.String())
	return nil
}

// Login links this store to a phone by rendering pairing QR codes to out
// until one is scanned or ctx ends.
func (w *WhatsApp) Login(ctx context.Context, out io.Writer) error {
	if w.client.Store.ID != nil {
		logging.Info("whatsapp device already paired", "device", w.client.Store.ID.String())
		return nil
	}

	qrChan, err := w.client.GetQRChannel(ctx)
	if err != nil {
		return fmt.Errorf("failed to get whatsapp qr channel: %w", err)
	}
	if err := w.client.Connect(); err != nil {
		return fmt.Errorf("failed to connect to whatsapp: %w", err)
	}

	for evt := range qrChan {
		switch evt.Event {
		case "code":
			fmt.Fprintln(out, "Scan with WhatsApp > Settings > Linked Devices > Link a Device")
			qrterminal.GenerateWithConfig(evt.Code, qrterminal.Config{
				Level:      qrterminal.M,
				Writer:     out,
				HalfBlocks: true,
				QuietZone:  1,
			})
		case "success":
			logging.Info("whatsapp device paired", "device", w.client.Store.ID.String())
			return nil
		case "timeout":
			return errors.New("whatsapp qr code expired before it was scanned")
		default:
			logging.Info("whatsapp pairing event", "event", evt.Event)
		}
	}
	return errors.New("whatsapp pairing ended without success")
}

// Close disconnects and releases the device store.
func (w *WhatsApp) Close() error {
	w.client.Disconnect()
	return w.container.Close()
}

// slogWALogger routes whatsmeow logs through slog. Info is demoted to debug
// because whatsmeow is chatty at that level.
type slogWALogger struct {
	l *slog.Logger
}

func (s slogWALogger) Errorf(msg string, args ...any) { s.l.Error(fmt.Sprintf(msg, args...)) }
func (s slogWALogger) Warnf(msg string, args ...any)  { s.l.Warn(fmt.Sprintf(msg, args...)) }
func (s slogWALogger) Infof(msg string, args ...any)  { s.l.Debug(fmt.Sprintf(msg, args...)) }
func (s slogWALogger) Debugf(msg string, args ...any) { s.l.Debug(fmt.Sprintf(msg, args...)) }

func (s slogWALogger) Sub(module string) waLog.Logger {
	return slogWALogger{l: s.l.With("submodule", module)}
}
