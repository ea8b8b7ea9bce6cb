// Package alert flags abnormal credit-spread moves and dispatches a single
// notification per abnormal evaluation.
package alert

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/stat"

	"github.com/seenimoa/creditpulse/internal/logging"
	"github.com/seenimoa/creditpulse/internal/metrics"
	"github.com/seenimoa/creditpulse/internal/notify"
	"github.com/seenimoa/creditpulse/pkg/models"
)

// DefaultThreshold is the z-score above which a move is abnormal.
const DefaultThreshold = 2.5

// DefaultChannel is the channel label sent with notifications.
const DefaultChannel = "n8n"

// IsAbnormalMove scores latest against the population mean and standard
// deviation of history. A flat or empty history never alerts and scores 0.
func IsAbnormalMove(history []float64, latest, threshold float64) (bool, float64) {
	if len(history) == 0 {
		return false, 0
	}
	mean, std := stat.PopMeanStdDev(history, nil)
	if std == 0 || math.IsNaN(std) {
		return false, 0
	}
	z := math.Abs(latest-mean) / std
	return z > threshold, z
}

// Message formats the notification text for a z-score.
func Message(z float64) string {
	return fmt.Sprintf("Abnormal spread move detected! Z-score: %.2f", z)
}

// Context is the per-evaluation input. It is not retained.
type Context struct {
	BondID  string    `json:"bond_id"`
	History []float64 `json:"spread_history"`
	Channel string    `json:"channel,omitempty"`
}

// Decision is the outcome of one evaluation.
type Decision struct {
	BondID    string  `json:"bond_id"`
	Abnormal  bool    `json:"abnormal"`
	ZScore    float64 `json:"z_score"`
	Delivered bool    `json:"delivered"`
	AlertID   string  `json:"alert_id,omitempty"`
	Channel   string  `json:"channel,omitempty"`
	Message   string  `json:"message,omitempty"`

	DeliveryErr   error  `json:"-"`
	DeliveryError string `json:"delivery_error,omitempty"`
}

// Event converts the decision into a streamable alert event.
func (d Decision) Event(at time.Time) models.AlertEvent {
	return models.AlertEvent{
		ID:        d.AlertID,
		BondID:    d.BondID,
		ZScore:    d.ZScore,
		Abnormal:  d.Abnormal,
		Delivered: d.Delivered,
		Channel:   d.Channel,
		Message:   d.Message,
		At:        at,
	}
}

// Detector evaluates spread moves and notifies on abnormal ones.
type Detector struct {
	Notifier  notify.Notifier // nil: decisions are made but nothing is sent
	Threshold float64         // <= 0 means DefaultThreshold
	Channel   string          // default channel when Context has none
	Logger    *zap.Logger
	Metrics   *metrics.Collectors

	// OnDecision, when set, receives every abnormal decision's event.
	OnDecision func(models.AlertEvent)
}

// NewDetector returns a detector with default threshold and channel.
func NewDetector(n notify.Notifier, logger *zap.Logger) *Detector {
	return &Detector{Notifier: n, Threshold: DefaultThreshold, Channel: DefaultChannel, Logger: logger}
}

// Evaluate scores latest against ac.History. On an abnormal move the
// notifier is called exactly once; a delivery failure is recorded in the
// decision and logged, never returned.
func (d *Detector) Evaluate(ctx context.Context, ac Context, latest float64) Decision {
	log := logging.OrNop(d.Logger).With(zap.String("bond_id", ac.BondID))

	threshold := d.Threshold
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	abnormal, z := IsAbnormalMove(ac.History, latest, threshold)
	dec := Decision{BondID: ac.BondID, Abnormal: abnormal, ZScore: z}
	d.Metrics.ObserveAlert(abnormal)
	if !abnormal {
		log.Debug("spread move within range", zap.Float64("z_score", z))
		return dec
	}

	dec.AlertID = uuid.NewString()
	dec.Channel = firstNonEmpty(ac.Channel, d.Channel, DefaultChannel)
	dec.Message = Message(z)
	log = log.With(zap.String("alert_id", dec.AlertID), zap.Float64("z_score", z))

	if d.Notifier == nil {
		log.Warn("abnormal spread move, no notifier configured")
	} else {
		err := d.Notifier.Notify(ctx, models.Notification{BondID: ac.BondID, Message: dec.Message, Channel: dec.Channel})
		d.Metrics.ObserveNotification(d.Notifier.Name(), err)
		if err != nil {
			dec.DeliveryErr = err
			dec.DeliveryError = err.Error()
			log.Warn("alert delivery failed", zap.Error(err))
		} else {
			dec.Delivered = true
			log.Info("alert delivered", zap.String("transport", d.Notifier.Name()))
		}
	}

	if d.OnDecision != nil {
		d.OnDecision(dec.Event(time.Now().UTC()))
	}
	return dec
}

// EvaluateRecord evaluates a bond record's latest spread against its own
// history.
func (d *Detector) EvaluateRecord(ctx context.Context, rec models.BondRecord) Decision {
	return d.Evaluate(ctx, Context{BondID: rec.ID, History: rec.SpreadHistory}, rec.Latest())
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
