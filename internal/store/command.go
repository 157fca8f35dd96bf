package store

import "github.com/veebhq/veeb/internal/model"

type (
	// A Command is a normalized mutation produced by an ingress adapter.
	// Commands may be delivered zero, one or many times, in any order;
	// their semantics are designed to stay stable under that.
	Command interface {
		isCommand()
	}

	// Insert adds a row, deduplicating by durable ID and reconciling
	// against a matching optimistic row.
	Insert struct {
		Issue *model.Issue
	}

	// Update merges a possibly-partial row into an existing one. Unknown
	// IDs are dropped (update-before-insert races are acceptable).
	Update struct {
		Partial *model.Partial
	}

	// Delete removes a row by ID, idempotently.
	Delete struct {
		ID string
	}

	// Reaction sets the absolute reaction count of a row. Absolute, not a
	// delta: duplicate delivery must not double-count.
	Reaction struct {
		ID    string
		Count int
	}
)

func (Insert) isCommand()   {}
func (Update) isCommand()   {}
func (Delete) isCommand()   {}
func (Reaction) isCommand() {}
