package temporal

import "go.uber.org/zap"

// ZapAdapter lets the Temporal SDK log through our Zap logger, so worker and
// client output lands in the same stream as the rest of the service.
type ZapAdapter struct{ *zap.SugaredLogger }

// NewZapAdapter wraps a Zap logger for the SDK. Sugared, because Temporal
// hands us loose keyvals rather than typed fields.
func NewZapAdapter(logger *zap.Logger) *ZapAdapter {
	return &ZapAdapter{logger.Sugar()}
}

func (z *ZapAdapter) Debug(msg string, keyvals ...interface{}) { z.Debugw(msg, keyvals...) }
func (z *ZapAdapter) Info(msg string, keyvals ...interface{})  { z.Infow(msg, keyvals...) }
func (z *ZapAdapter) Warn(msg string, keyvals ...interface{})  { z.Warnw(msg, keyvals...) }
func (z *ZapAdapter) Error(msg string, keyvals ...interface{}) { z.Errorw(msg, keyvals...) }
