package live

import "github.com/zsprackett/agenda-live/internal/events"

// Message returns the toast text for a change made by someone else. The
// second result is false for combinations that produce no notification.
func Message(c events.Change) (string, bool) {
	switch c.Entity {
	case events.EntityDemanda:
		switch c.Type {
		case events.Insert:
			return c.Actor + " criou uma demanda", true
		case events.Update:
			return c.Actor + " atualizou uma demanda", true
		case events.Delete:
			return c.Actor + " excluiu uma demanda", true
		}
	case events.EntityDiariaTerceirizado:
		return c.Actor + " atualizou uma diária", true
	case events.EntityLocacaoFornecedor:
		return c.Actor + " criou uma locação", true
	}
	return "", false
}
