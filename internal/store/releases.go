package store

import (
	"encoding/json"
	"fmt"
	"maps"

	"zombiezen.com/go/sqlite"

	"github.com/giantswarm/agentcatalog/internal/api"
)

const releaseColumns = `id, agent_type, version, labels, url, exe, created_at`

// InsertRelease stores a new release. The caller assigns ID and CreatedAt.
func (tx *Tx) InsertRelease(r api.Release) error {
	if err := tx.writable(); err != nil {
		return err
	}
	labels, err := encodeLabels(r.Labels)
	if err != nil {
		return err
	}
	err = tx.exec(`INSERT INTO releases (`+releaseColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		r.ID, string(r.AgentType), r.Version, labels, r.URL, r.Exe, toUnix(r.CreatedAt))
	if err != nil {
		return fmt.Errorf("store: insert release %s: %w", r.ID, err)
	}
	return nil
}

// GetRelease returns the release with the given ID or a NotFoundError.
func (tx *Tx) GetRelease(id string) (api.Release, error) {
	var (
		release api.Release
		found   bool
	)
	err := tx.query(`SELECT `+releaseColumns+` FROM releases WHERE id = ?`, func(stmt *sqlite.Stmt) error {
		r, err := scanRelease(stmt)
		if err != nil {
			return err
		}
		release, found = r, true
		return nil
	}, id)
	if err != nil {
		return api.Release{}, fmt.Errorf("store: get release %s: %w", id, err)
	}
	if !found {
		return api.Release{}, api.NewReleaseNotFoundError(id)
	}
	return release, nil
}

// ListReleases returns every release ordered by agent type then creation.
func (tx *Tx) ListReleases() ([]api.Release, error) {
	var releases []api.Release
	err := tx.query(`SELECT `+releaseColumns+` FROM releases ORDER BY agent_type, created_at, id`, func(stmt *sqlite.Stmt) error {
		r, err := scanRelease(stmt)
		if err != nil {
			return err
		}
		releases = append(releases, r)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("store: list releases: %w", err)
	}
	return releases, nil
}

// FindRelease returns the release with the same agent type, version and
// labels, if one exists.
func (tx *Tx) FindRelease(agentType api.AgentType, version string, labels map[string]string) (api.Release, bool, error) {
	var (
		match api.Release
		found bool
	)
	err := tx.query(`SELECT `+releaseColumns+` FROM releases WHERE agent_type = ? AND version = ?`, func(stmt *sqlite.Stmt) error {
		r, err := scanRelease(stmt)
		if err != nil {
			return err
		}
		if !found && maps.Equal(normalize(r.Labels), normalize(labels)) {
			match, found = r, true
		}
		return nil
	}, string(agentType), version)
	if err != nil {
		return api.Release{}, false, fmt.Errorf("store: find release %s %s: %w", agentType, version, err)
	}
	return match, found, nil
}

// DeleteRelease removes a release. It reports NotFound when no row existed.
// Callers check references first.
func (tx *Tx) DeleteRelease(id string) error {
	if err := tx.writable(); err != nil {
		return err
	}
	if err := tx.exec(`DELETE FROM releases WHERE id = ?`, id); err != nil {
		return fmt.Errorf("store: delete release %s: %w", id, err)
	}
	if tx.conn.Changes() == 0 {
		return api.NewReleaseNotFoundError(id)
	}
	return nil
}

func scanRelease(stmt *sqlite.Stmt) (api.Release, error) {
	labels, err := decodeLabels(stmt.ColumnText(3))
	if err != nil {
		return api.Release{}, err
	}
	return api.Release{
		ID:        stmt.ColumnText(0),
		AgentType: api.AgentType(stmt.ColumnText(1)),
		Version:   stmt.ColumnText(2),
		Labels:    labels,
		URL:       stmt.ColumnText(4),
		Exe:       stmt.ColumnText(5),
		CreatedAt: fromUnix(stmt.ColumnInt64(6)),
	}, nil
}

// encodeLabels produces a canonical JSON object. encoding/json sorts map
// keys, so equal maps encode to equal strings.
func encodeLabels(labels map[string]string) (string, error) {
	data, err := json.Marshal(normalize(labels))
	if err != nil {
		return "", fmt.Errorf("store: encode labels: %w", err)
	}
	return string(data), nil
}

func decodeLabels(s string) (map[string]string, error) {
	labels := map[string]string{}
	if s == "" {
		return labels, nil
	}
	if err := json.Unmarshal([]byte(s), &labels); err != nil {
		return nil, fmt.Errorf("store: decode labels: %w", err)
	}
	return labels, nil
}

func normalize(labels map[string]string) map[string]string {
	if labels == nil {
		return map[string]string{}
	}
	return labels
}
