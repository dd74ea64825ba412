package ledger

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"
)

// Entry is a tamper-evident record of one expansion: which source produced which plan.
type Entry struct {
	Index      int    `json:"index"`
	Timestamp  string `json:"timestamp"`
	Source     string `json:"source"`
	SourceHash string `json:"sourceHash"`
	PlanID     string `json:"planId"`
	PlanHash   string `json:"planHash"`
	JobCount   int    `json:"jobCount"`
	PrevHash   string `json:"prevHash"`
	Hash       string `json:"hash"`
	Signature  string `json:"signature"`
	PubKey     string `json:"pubKey"`
}

// canonicalData returns the JSON bytes used to compute the entry hash.
// It excludes Hash, Signature and PubKey.
func (e *Entry) canonicalData() ([]byte, error) {
	view := struct {
		Index      int    `json:"index"`
		Timestamp  string `json:"timestamp"`
		Source     string `json:"source"`
		SourceHash string `json:"sourceHash"`
		PlanID     string `json:"planId"`
		PlanHash   string `json:"planHash"`
		JobCount   int    `json:"jobCount"`
		PrevHash   string `json:"prevHash"`
	}{
		Index:      e.Index,
		Timestamp:  e.Timestamp,
		Source:     e.Source,
		SourceHash: e.SourceHash,
		PlanID:     e.PlanID,
		PlanHash:   e.PlanHash,
		JobCount:   e.JobCount,
		PrevHash:   e.PrevHash,
	}
	return json.Marshal(view)
}

// ComputeHash calculates SHA256 over canonicalData
func (e *Entry) ComputeHash() (string, error) {
	data, err := e.canonicalData()
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// NewEntry constructs an entry and computes its hash (no signature yet)
func NewEntry(index int, source, sourceHash, planID, planHash string, jobCount int, prevHash string) (*Entry, error) {
	e := &Entry{
		Index:      index,
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
		Source:     source,
		SourceHash: sourceHash,
		PlanID:     planID,
		PlanHash:   planHash,
		JobCount:   jobCount,
		PrevHash:   prevHash,
	}
	h, err := e.ComputeHash()
	if err != nil {
		return nil, fmt.Errorf("compute entry hash: %w", err)
	}
	e.Hash = h
	return e, nil
}
