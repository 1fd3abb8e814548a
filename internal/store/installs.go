package store

import (
	"fmt"

	"zombiezen.com/go/sqlite"

	"github.com/giantswarm/agentcatalog/internal/api"
	"github.com/giantswarm/agentcatalog/internal/selector"
)

const installColumns = `id, tenant_id, release_id, selector, method, created_at`

// InsertInstall stores an install together with one install_labels row per
// selector pair.
func (tx *Tx) InsertInstall(in api.Install) error {
	if err := tx.writable(); err != nil {
		return err
	}
	sel, err := encodeLabels(in.Selector)
	if err != nil {
		return err
	}
	method := in.Method
	if method == "" {
		method = api.SelectorMethodAnd
	}

	err = tx.exec(`INSERT INTO installs (`+installColumns+`, selector_size) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		in.ID, in.TenantID, in.ReleaseID, sel, string(method), toUnix(in.CreatedAt), len(in.Selector))
	if err != nil {
		return fmt.Errorf("store: insert install %s: %w", in.ID, err)
	}

	for key, value := range in.Selector {
		err := tx.exec(`INSERT INTO install_labels (install_id, tenant_id, label_key, label_value) VALUES (?, ?, ?, ?)`,
			in.ID, in.TenantID, key, value)
		if err != nil {
			return fmt.Errorf("store: index install %s label %s: %w", in.ID, key, err)
		}
	}
	return nil
}

// GetInstall returns the install with the given ID or a NotFoundError.
func (tx *Tx) GetInstall(id string) (api.Install, error) {
	var (
		install api.Install
		found   bool
	)
	err := tx.query(`SELECT `+installColumns+` FROM installs WHERE id = ?`, func(stmt *sqlite.Stmt) error {
		in, err := scanInstall(stmt)
		if err != nil {
			return err
		}
		install, found = in, true
		return nil
	}, id)
	if err != nil {
		return api.Install{}, fmt.Errorf("store: get install %s: %w", id, err)
	}
	if !found {
		return api.Install{}, api.NewInstallNotFoundError(id)
	}
	return install, nil
}

// ListInstalls returns a tenant's installs in creation order.
func (tx *Tx) ListInstalls(tenantID string) ([]api.Install, error) {
	return tx.listInstalls(`SELECT `+installColumns+` FROM installs WHERE tenant_id = ? ORDER BY created_at, id`, tenantID)
}

// InstallsForRelease returns a tenant's installs of one release.
func (tx *Tx) InstallsForRelease(tenantID, releaseID string) ([]api.Install, error) {
	return tx.listInstalls(`SELECT `+installColumns+` FROM installs WHERE tenant_id = ? AND release_id = ? ORDER BY created_at, id`,
		tenantID, releaseID)
}

// CountReleaseReferences counts installs, across all tenants, that
// reference the release.
func (tx *Tx) CountReleaseReferences(releaseID string) (int, error) {
	var count int
	err := tx.query(`SELECT COUNT(*) FROM installs WHERE release_id = ?`, func(stmt *sqlite.Stmt) error {
		count = stmt.ColumnInt(0)
		return nil
	}, releaseID)
	if err != nil {
		return 0, fmt.Errorf("store: count references to release %s: %w", releaseID, err)
	}
	return count, nil
}

// DeleteInstall removes an install and its label rows.
func (tx *Tx) DeleteInstall(id string) error {
	if err := tx.writable(); err != nil {
		return err
	}
	if err := tx.exec(`DELETE FROM install_labels WHERE install_id = ?`, id); err != nil {
		return fmt.Errorf("store: delete labels of install %s: %w", id, err)
	}
	if err := tx.exec(`DELETE FROM installs WHERE id = ?`, id); err != nil {
		return fmt.Errorf("store: delete install %s: %w", id, err)
	}
	if tx.conn.Changes() == 0 {
		return api.NewInstallNotFoundError(id)
	}
	return nil
}

// MatchInstalls returns the tenant's installs whose selector matches the
// resource labels, sorted by ID. Every label pair of the resource is
// looked up in the install_labels index and the hits are tallied with the
// rules of selector.Tally.
func (tx *Tx) MatchInstalls(tenantID string, resourceLabels map[string]string) ([]api.Install, error) {
	tally := selector.NewTally()

	err := tx.query(`SELECT id FROM installs WHERE tenant_id = ? AND selector_size = 0`, func(stmt *sqlite.Stmt) error {
		tally.Universal(stmt.ColumnText(0))
		return nil
	}, tenantID)
	if err != nil {
		return nil, fmt.Errorf("store: match universal installs: %w", err)
	}

	for key, value := range resourceLabels {
		err := tx.query(`SELECT i.id, i.selector_size, i.method
			FROM install_labels l JOIN installs i ON i.id = l.install_id
			WHERE l.tenant_id = ? AND l.label_key = ? AND l.label_value = ?`, func(stmt *sqlite.Stmt) error {
			tally.Hit(selector.Entry{
				ID:     stmt.ColumnText(0),
				Size:   stmt.ColumnInt(1),
				Method: api.SelectorMethod(stmt.ColumnText(2)),
			})
			return nil
		}, tenantID, key, value)
		if err != nil {
			return nil, fmt.Errorf("store: match installs on %s=%s: %w", key, value, err)
		}
	}

	ids := tally.Matches()
	installs := make([]api.Install, 0, len(ids))
	for _, id := range ids {
		in, err := tx.GetInstall(id)
		if err != nil {
			return nil, err
		}
		installs = append(installs, in)
	}
	return installs, nil
}

func (tx *Tx) listInstalls(query string, args ...any) ([]api.Install, error) {
	var installs []api.Install
	err := tx.query(query, func(stmt *sqlite.Stmt) error {
		in, err := scanInstall(stmt)
		if err != nil {
			return err
		}
		installs = append(installs, in)
		return nil
	}, args...)
	if err != nil {
		return nil, fmt.Errorf("store: list installs: %w", err)
	}
	return installs, nil
}

func scanInstall(stmt *sqlite.Stmt) (api.Install, error) {
	sel, err := decodeLabels(stmt.ColumnText(3))
	if err != nil {
		return api.Install{}, err
	}
	return api.Install{
		ID:        stmt.ColumnText(0),
		TenantID:  stmt.ColumnText(1),
		ReleaseID: stmt.ColumnText(2),
		Selector:  sel,
		Method:    api.SelectorMethod(stmt.ColumnText(4)),
		CreatedAt: fromUnix(stmt.ColumnInt64(5)),
	}, nil
}
