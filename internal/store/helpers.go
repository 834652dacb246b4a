package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/machinepilot/machinepilot/internal/models"
)

// sqlStore implements Store on top of database/sql. Records are stored as
// JSON documents keyed by their natural id, which keeps the SQLite and
// Postgres backends identical apart from placeholder syntax.
type sqlStore struct {
	db     *sql.DB
	rebind func(query string) string
}

// passthrough keeps "?" placeholders (SQLite).
func passthrough(query string) string { return query }

// dollarRebind rewrites "?" placeholders to "$1".."$n" (Postgres).
func dollarRebind(query string) string {
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (s *sqlStore) upsert(table, keyCol, key string, record interface{}) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to encode %s record: %w", table, err)
	}
	query := fmt.Sprintf(
		"INSERT INTO %s (%s, data) VALUES (?, ?) ON CONFLICT (%s) DO UPDATE SET data = excluded.data",
		table, keyCol, keyCol,
	)
	if _, err := s.db.Exec(s.rebind(query), key, string(data)); err != nil {
		return fmt.Errorf("failed to save %s record: %w", table, err)
	}
	return nil
}

// get decodes the record for key into out; found reports whether a row existed.
func (s *sqlStore) get(table, keyCol, key string, out interface{}) (bool, error) {
	query := fmt.Sprintf("SELECT data FROM %s WHERE %s = ?", table, keyCol)
	var data string
	err := s.db.QueryRow(s.rebind(query), key).Scan(&data)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to load %s record: %w", table, err)
	}
	if err := json.Unmarshal([]byte(data), out); err != nil {
		return false, fmt.Errorf("failed to decode %s record: %w", table, err)
	}
	return true, nil
}

func (s *sqlStore) delete(table, keyCol, key string) error {
	query := fmt.Sprintf("DELETE FROM %s WHERE %s = ?", table, keyCol)
	if _, err := s.db.Exec(s.rebind(query), key); err != nil {
		return fmt.Errorf("failed to delete %s record: %w", table, err)
	}
	return nil
}

func (s *sqlStore) listRaw(table string) ([]string, error) {
	rows, err := s.db.Query(fmt.Sprintf("SELECT data FROM %s", table))
	if err != nil {
		return nil, fmt.Errorf("failed to list %s records: %w", table, err)
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("failed to scan %s record: %w", table, err)
		}
		out = append(out, data)
	}
	return out, rows.Err()
}

func (s *sqlStore) GetAccount(email string) (*models.Account, error) {
	var a models.Account
	found, err := s.get("accounts", "email", email, &a)
	if err != nil || !found {
		return nil, err
	}
	return &a, nil
}

func (s *sqlStore) SaveAccount(a models.Account) error {
	return s.upsert("accounts", "email", a.Email, a)
}

func (s *sqlStore) DeleteAccount(email string) error {
	return s.delete("accounts", "email", email)
}

func (s *sqlStore) GetDevice(id string) (*models.Device, error) {
	var d models.Device
	found, err := s.get("devices", "id", id, &d)
	if err != nil || !found {
		return nil, err
	}
	return &d, nil
}

func (s *sqlStore) SaveDevice(d models.Device) error {
	return s.upsert("devices", "id", d.ID, d)
}

func (s *sqlStore) DeleteDevice(id string) error {
	return s.delete("devices", "id", id)
}

func (s *sqlStore) ListDevices() ([]models.Device, error) {
	raw, err := s.listRaw("devices")
	if err != nil {
		return nil, err
	}
	out := make([]models.Device, 0, len(raw))
	for _, data := range raw {
		var d models.Device
		if err := json.Unmarshal([]byte(data), &d); err != nil {
			return nil, fmt.Errorf("failed to decode devices record: %w", err)
		}
		out = append(out, d)
	}
	return out, nil
}

func (s *sqlStore) GetSession(id string) (*models.Session, error) {
	var sess models.Session
	found, err := s.get("sessions", "id", id, &sess)
	if err != nil || !found {
		return nil, err
	}
	return &sess, nil
}

func (s *sqlStore) SaveSession(sess models.Session) error {
	return s.upsert("sessions", "id", sess.ID, sess)
}

func (s *sqlStore) DeleteSession(id string) error {
	return s.delete("sessions", "id", id)
}

func (s *sqlStore) ListSessions() ([]models.Session, error) {
	raw, err := s.listRaw("sessions")
	if err != nil {
		return nil, err
	}
	out := make([]models.Session, 0, len(raw))
	for _, data := range raw {
		var sess models.Session
		if err := json.Unmarshal([]byte(data), &sess); err != nil {
			return nil, fmt.Errorf("failed to decode sessions record: %w", err)
		}
		out = append(out, sess)
	}
	return out, nil
}

func (s *sqlStore) GetTicket(id string) (*models.Ticket, error) {
	var t models.Ticket
	found, err := s.get("tickets", "id", id, &t)
	if err != nil || !found {
		return nil, err
	}
	return &t, nil
}

func (s *sqlStore) SaveTicket(t models.Ticket) error {
	return s.upsert("tickets", "id", t.ID, t)
}

func (s *sqlStore) DeleteTicket(id string) error {
	return s.delete("tickets", "id", id)
}

func (s *sqlStore) ListTickets() ([]models.Ticket, error) {
	raw, err := s.listRaw("tickets")
	if err != nil {
		return nil, err
	}
	out := make([]models.Ticket, 0, len(raw))
	for _, data := range raw {
		var t models.Ticket
		if err := json.Unmarshal([]byte(data), &t); err != nil {
			return nil, fmt.Errorf("failed to decode tickets record: %w", err)
		}
		out = append(out, t)
	}
	return out, nil
}

func (s *sqlStore) GetFlowSnapshot(sessionID string) (*models.FlowSnapshot, error) {
	var snap models.FlowSnapshot
	found, err := s.get("flow_snapshots", "session_id", sessionID, &snap)
	if err != nil || !found {
		return nil, err
	}
	return &snap, nil
}

func (s *sqlStore) SaveFlowSnapshot(snap models.FlowSnapshot) error {
	return s.upsert("flow_snapshots", "session_id", snap.SessionID, snap)
}

func (s *sqlStore) DeleteFlowSnapshot(sessionID string) error {
	return s.delete("flow_snapshots", "session_id", sessionID)
}

func (s *sqlStore) GetTranscript(sessionID string) ([]models.ChatMessage, error) {
	var msgs []models.ChatMessage
	found, err := s.get("transcripts", "session_id", sessionID, &msgs)
	if err != nil || !found {
		return nil, err
	}
	return msgs, nil
}

func (s *sqlStore) SaveTranscript(sessionID string, msgs []models.ChatMessage) error {
	if msgs == nil {
		msgs = []models.ChatMessage{}
	}
	return s.upsert("transcripts", "session_id", sessionID, msgs)
}

func (s *sqlStore) DeleteTranscript(sessionID string) error {
	return s.delete("transcripts", "session_id", sessionID)
}

func (s *sqlStore) Close() error {
	return s.db.Close()
}
