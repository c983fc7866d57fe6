package store

import (
	"context"
	"database/sql"

	"github.com/ksyq12/tsm/internal/errors"
	"github.com/ksyq12/tsm/internal/models"
)

const nginxFileColumns = `public_id, server_names, port_number, local_ip_address,
    machine_public_id, template_file, file_path, created_at, updated_at`

func scanNginxFile(row scanner) (*models.NginxFile, error) {
	var (
		f                    models.NginxFile
		names                string
		createdAt, updatedAt string
	)
	if err := row.Scan(&f.PublicID, &names, &f.PortNumber, &f.LocalIPAddress, &f.MachinePublicID,
		&f.TemplateFile, &f.FilePath, &createdAt, &updatedAt); err != nil {
		return nil, err
	}

	var err error
	if f.ServerNames, err = decodeList(names); err != nil {
		return nil, err
	}
	f.CreatedAt = parseTime(createdAt)
	f.UpdatedAt = parseTime(updatedAt)
	return &f, nil
}

// SaveNginxFile records a generated config file. A record already pointing
// at the same file path is replaced, keeping its public id.
func (s *Store) SaveNginxFile(ctx context.Context, f *models.NginxFile) (*models.NginxFile, error) {
	if len(f.ServerNames) == 0 {
		return nil, errors.Validation("at least one server name is required")
	}
	if f.FilePath == "" {
		return nil, errors.Validation("file path is required")
	}
	names, err := encodeList(f.ServerNames)
	if err != nil {
		return nil, storeErr("failed to encode server names", err)
	}

	now := s.timestamp()
	existing, err := s.GetNginxFileByPath(ctx, f.FilePath)
	switch {
	case err == nil:
		_, err = s.db.ExecContext(ctx, `UPDATE nginx_files SET
            server_names = ?, port_number = ?, local_ip_address = ?, machine_public_id = ?,
            template_file = ?, updated_at = ?
            WHERE public_id = ?`,
			names, f.PortNumber, f.LocalIPAddress, f.MachinePublicID, f.TemplateFile, now, existing.PublicID)
		if err != nil {
			return nil, storeErr("failed to update nginx file", err)
		}
		return s.GetNginxFile(ctx, existing.PublicID)
	case !errors.Is(err, errors.ErrNotFound):
		return nil, err
	}

	publicID := models.NewPublicID()
	_, err = s.db.ExecContext(ctx, `INSERT INTO nginx_files
        (public_id, server_names, port_number, local_ip_address, machine_public_id, template_file, file_path, created_at, updated_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		publicID, names, f.PortNumber, f.LocalIPAddress, f.MachinePublicID, f.TemplateFile, f.FilePath, now, now)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, errors.AlreadyExists("nginx file", f.FilePath)
		}
		return nil, storeErr("failed to insert nginx file", err)
	}
	return s.GetNginxFile(ctx, publicID)
}

func (s *Store) getNginxFile(ctx context.Context, where, arg string) (*models.NginxFile, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+nginxFileColumns+" FROM nginx_files WHERE "+where, arg)
	f, err := scanNginxFile(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errors.NotFound("nginx file", arg)
		}
		return nil, storeErr("failed to load nginx file", err)
	}
	return f, nil
}

// GetNginxFile looks a record up by public id.
func (s *Store) GetNginxFile(ctx context.Context, publicID string) (*models.NginxFile, error) {
	return s.getNginxFile(ctx, "public_id = ?", publicID)
}

// GetNginxFileByPath looks a record up by file path.
func (s *Store) GetNginxFileByPath(ctx context.Context, path string) (*models.NginxFile, error) {
	return s.getNginxFile(ctx, "file_path = ?", path)
}

// ListNginxFiles returns every record, newest first.
func (s *Store) ListNginxFiles(ctx context.Context) ([]*models.NginxFile, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT "+nginxFileColumns+" FROM nginx_files ORDER BY created_at DESC, public_id")
	if err != nil {
		return nil, storeErr("failed to list nginx files", err)
	}
	defer rows.Close()

	files := []*models.NginxFile{}
	for rows.Next() {
		f, err := scanNginxFile(rows)
		if err != nil {
			return nil, storeErr("failed to read nginx file", err)
		}
		files = append(files, f)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("failed to list nginx files", err)
	}
	return files, nil
}

// TouchNginxFile bumps a record's updated_at after its file was edited.
func (s *Store) TouchNginxFile(ctx context.Context, publicID string) error {
	res, err := s.db.ExecContext(ctx, "UPDATE nginx_files SET updated_at = ? WHERE public_id = ?",
		s.timestamp(), publicID)
	if err != nil {
		return storeErr("failed to update nginx file", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errors.NotFound("nginx file", publicID)
	}
	return nil
}

// DeleteNginxFile removes a record. The file on disk is left alone.
func (s *Store) DeleteNginxFile(ctx context.Context, publicID string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM nginx_files WHERE public_id = ?", publicID)
	if err != nil {
		return storeErr("failed to delete nginx file", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errors.NotFound("nginx file", publicID)
	}
	return nil
}
