package store

import (
	"context"
	"fmt"

	"github.com/roach88/vellum/internal/engine"
	"github.com/roach88/vellum/internal/ir"
)

// Document describes one journaled engine instance.
type Document struct {
	ID            string `json:"id"`
	Source        string `json:"source"`
	SourceHash    string `json:"source_hash"`
	VariantIndex  int    `json:"variant_index"`
	VariantName   string `json:"variant_name"`
	EngineVersion string `json:"engine_version"`
}

// Snapshot is the essential state of a document after action seq.
type Snapshot struct {
	DocumentID    string      `json:"document_id"`
	Seq           int64       `json:"seq"`
	Essentials    ir.IRObject `json:"essentials"`
	EssentialHash string      `json:"essential_hash"`
}

// WriteDocument inserts a document record.
// Uses ON CONFLICT(id) DO NOTHING: the first write wins.
func (s *Store) WriteDocument(ctx context.Context, doc Document) error {
	if doc.ID == "" {
		return fmt.Errorf("write document: empty id")
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO documents
		(id, source, source_hash, variant_index, variant_name, engine_version)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		doc.ID,
		doc.Source,
		doc.SourceHash,
		doc.VariantIndex,
		doc.VariantName,
		doc.EngineVersion,
	)
	if err != nil {
		return fmt.Errorf("write document: %w", err)
	}
	return nil
}

// RecordAction appends a processed action to the journal. It implements
// engine.Journal.
//
// Duplicate IDs are silently ignored, so replaying into the same journal
// is idempotent. A document row is created on first use if WriteDocument
// was never called.
func (s *Store) RecordAction(ctx context.Context, rec engine.ActionRecord) error {
	argsJSON, err := marshalArgs(rec.Args)
	if err != nil {
		return fmt.Errorf("record action: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("record action: begin: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO documents (id) VALUES (?)
		ON CONFLICT(id) DO NOTHING
	`, rec.DocumentID); err != nil {
		return fmt.Errorf("record action: document: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO actions
		(id, document_id, seq, component, action, args, essential_hash, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		rec.ID,
		rec.DocumentID,
		rec.Seq,
		rec.Component,
		rec.Action,
		argsJSON,
		rec.EssentialHash,
		rec.Error,
	)
	if err != nil {
		return fmt.Errorf("record action: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("record action: commit: %w", err)
	}
	return nil
}

// WriteSnapshot stores essential values for a document at seq. The hash
// is computed here so it always matches the stored values.
func (s *Store) WriteSnapshot(ctx context.Context, documentID string, seq int64, essentials ir.IRObject) (Snapshot, error) {
	data, err := marshalEssentials(essentials)
	if err != nil {
		return Snapshot{}, fmt.Errorf("write snapshot: %w", err)
	}
	hash, err := ir.EssentialHash(essentials)
	if err != nil {
		return Snapshot{}, fmt.Errorf("write snapshot: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO snapshots (document_id, seq, essentials, essential_hash)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(document_id, seq) DO UPDATE SET
			essentials = excluded.essentials,
			essential_hash = excluded.essential_hash
	`, documentID, seq, data, hash)
	if err != nil {
		return Snapshot{}, fmt.Errorf("write snapshot: %w", err)
	}

	return Snapshot{
		DocumentID:    documentID,
		Seq:           seq,
		Essentials:    essentials,
		EssentialHash: hash,
	}, nil
}
