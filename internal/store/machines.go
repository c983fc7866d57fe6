package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/ksyq12/tsm/internal/errors"
	"github.com/ksyq12/tsm/internal/models"
)

const machineColumns = `public_id, machine_name, url_api_for_tsm_network, local_ip_address,
    nginx_storage_path_options, created_at`

func scanMachine(row scanner) (*models.Machine, error) {
	var (
		m         models.Machine
		paths     string
		createdAt string
	)
	if err := row.Scan(&m.PublicID, &m.MachineName, &m.URLAPIForTsmNetwork, &m.LocalIPAddress,
		&paths, &createdAt); err != nil {
		return nil, err
	}

	var err error
	if m.NginxStoragePathOptions, err = decodeList(paths); err != nil {
		return nil, err
	}
	m.CreatedAt = parseTime(createdAt)
	return &m, nil
}

// CreateMachine inserts a machine, assigning its public id.
func (s *Store) CreateMachine(ctx context.Context, m *models.Machine) (*models.Machine, error) {
	if m.MachineName == "" {
		return nil, errors.Validation("machine name is required")
	}
	paths, err := encodeList(m.NginxStoragePathOptions)
	if err != nil {
		return nil, storeErr("failed to encode storage paths", err)
	}

	publicID := models.NewPublicID()
	_, err = s.db.ExecContext(ctx, `INSERT INTO machines
        (public_id, machine_name, url_api_for_tsm_network, local_ip_address, nginx_storage_path_options, created_at)
        VALUES (?, ?, ?, ?, ?, ?)`,
		publicID, m.MachineName, m.URLAPIForTsmNetwork, m.LocalIPAddress, paths, s.timestamp())
	if err != nil {
		return nil, storeErr("failed to insert machine", err)
	}

	return s.GetMachine(ctx, publicID)
}

// GetMachine looks a machine up by public id.
func (s *Store) GetMachine(ctx context.Context, publicID string) (*models.Machine, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+machineColumns+" FROM machines WHERE public_id = ?", publicID)
	m, err := scanMachine(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errors.NotFound("machine", publicID)
		}
		return nil, storeErr("failed to load machine", err)
	}
	return m, nil
}

// ListMachines returns every machine ordered by name.
func (s *Store) ListMachines(ctx context.Context) ([]*models.Machine, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT "+machineColumns+" FROM machines ORDER BY machine_name, created_at")
	if err != nil {
		return nil, storeErr("failed to list machines", err)
	}
	defer rows.Close()

	machines := []*models.Machine{}
	for rows.Next() {
		m, err := scanMachine(rows)
		if err != nil {
			return nil, storeErr("failed to read machine", err)
		}
		machines = append(machines, m)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("failed to list machines", err)
	}
	return machines, nil
}

// DeleteMachine removes a machine. Machines that still have recorded nginx
// files cannot be deleted.
func (s *Store) DeleteMachine(ctx context.Context, publicID string) error {
	var files int
	if err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM nginx_files WHERE machine_public_id = ?", publicID).Scan(&files); err != nil {
		return storeErr("failed to count nginx files", err)
	}
	if files > 0 {
		return errors.Validation(fmt.Sprintf("machine %s still has %d nginx config files", publicID, files))
	}

	res, err := s.db.ExecContext(ctx, "DELETE FROM machines WHERE public_id = ?", publicID)
	if err != nil {
		return storeErr("failed to delete machine", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errors.NotFound("machine", publicID)
	}
	return nil
}
