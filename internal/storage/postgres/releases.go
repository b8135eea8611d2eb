package postgres

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/jackc/pgx/v5"

	"github.com/rna3dhub/motifatlas/internal/types"
)

// CreateRelease stores rel and all its motifs in one transaction. An
// existing (loop type, id) is rejected with types.ErrReleaseExists.
func (s *PostgresStorage) CreateRelease(ctx context.Context, rel *types.Release) error {
	if err := rel.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}
	major, minor, err := types.ParseReleaseID(rel.ID)
	if err != nil {
		return err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(context.Background()) }()

	_, err = tx.Exec(ctx, `
		INSERT INTO releases (loop_type, id, major, minor, created_at, description)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, string(rel.LoopType), rel.ID, major, minor, rel.Date.UTC(), rel.Description)
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: %s %s", types.ErrReleaseExists, rel.LoopType, rel.ID)
	}
	if err != nil {
		return fmt.Errorf("failed to insert release: %w", err)
	}

	batch := &pgx.Batch{}
	for pos := range rel.Motifs {
		g := &rel.Motifs[pos]
		h := g.Identity.Handle
		batch.Queue(`
			INSERT INTO motifs (loop_type, release_id, handle, version, name, kind, comment, signature, position)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		`, string(rel.LoopType), rel.ID, h, g.Identity.Version, g.Name, string(g.Identity.Kind),
			g.Identity.Comment, g.Signature, pos)
		for j, loop := range g.Members {
			batch.Queue(`
				INSERT INTO motif_members (loop_type, release_id, handle, loop_id, position)
				VALUES ($1, $2, $3, $4, $5)
			`, string(rel.LoopType), rel.ID, h, loop, j)
		}
		for _, p := range g.Parents {
			batch.Queue(`
				INSERT INTO motif_parents (loop_type, release_id, handle, parent_id)
				VALUES ($1, $2, $3, $4)
			`, string(rel.LoopType), rel.ID, h, p.String())
		}
		batch.Queue(`
			INSERT INTO handles (handle, loop_type, release_id) VALUES ($1, $2, $3)
			ON CONFLICT (handle) DO NOTHING
		`, h, string(rel.LoopType), rel.ID)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("failed to insert motifs of release %s: %w", rel.ID, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// GetRelease returns the release or nil if it does not exist.
func (s *PostgresStorage) GetRelease(ctx context.Context, loopType types.LoopType, id string) (*types.Release, error) {
	rel := &types.Release{ID: id, LoopType: loopType}
	err := s.pool.QueryRow(ctx, `
		SELECT created_at, description FROM releases WHERE loop_type = $1 AND id = $2
	`, string(loopType), id).Scan(&rel.Date, &rel.Description)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get release %s %s: %w", loopType, id, err)
	}
	rel.Date = rel.Date.UTC()

	rows, err := s.pool.Query(ctx, `
		SELECT handle, version, name, kind, comment, signature
		FROM motifs WHERE loop_type = $1 AND release_id = $2
		ORDER BY position
	`, string(loopType), id)
	if err != nil {
		return nil, fmt.Errorf("failed to get motifs: %w", err)
	}
	index := make(map[string]int)
	for rows.Next() {
		g := types.NamedGroup{LoopType: loopType}
		var kind string
		if err := rows.Scan(&g.Identity.Handle, &g.Identity.Version, &g.Name,
			&kind, &g.Identity.Comment, &g.Signature); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan motif: %w", err)
		}
		g.Identity.Kind = types.ChangeKind(kind)
		index[g.Identity.Handle] = len(rel.Motifs)
		rel.Motifs = append(rel.Motifs, g)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	rows, err = s.pool.Query(ctx, `
		SELECT handle, loop_id FROM motif_members
		WHERE loop_type = $1 AND release_id = $2
		ORDER BY handle, position
	`, string(loopType), id)
	if err != nil {
		return nil, fmt.Errorf("failed to get members: %w", err)
	}
	for rows.Next() {
		var h, loop string
		if err := rows.Scan(&h, &loop); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan member: %w", err)
		}
		g := &rel.Motifs[index[h]]
		g.Members = append(g.Members, loop)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	rows, err = s.pool.Query(ctx, `
		SELECT handle, parent_id FROM motif_parents
		WHERE loop_type = $1 AND release_id = $2
		ORDER BY handle, parent_id
	`, string(loopType), id)
	if err != nil {
		return nil, fmt.Errorf("failed to get parents: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var h, parent string
		if err := rows.Scan(&h, &parent); err != nil {
			return nil, fmt.Errorf("failed to scan parent: %w", err)
		}
		pid, err := types.ParseMotifID(parent)
		if err != nil {
			return nil, err
		}
		g := &rel.Motifs[index[h]]
		g.Parents = append(g.Parents, pid)
	}
	return rel, rows.Err()
}

// LatestRelease returns the newest release of loopType, or nil if none.
func (s *PostgresStorage) LatestRelease(ctx context.Context, loopType types.LoopType) (*types.Release, error) {
	var id string
	err := s.pool.QueryRow(ctx, `
		SELECT id FROM releases WHERE loop_type = $1
		ORDER BY major DESC, minor DESC LIMIT 1
	`, string(loopType)).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find latest release: %w", err)
	}
	return s.GetRelease(ctx, loopType, id)
}

// ListReleases returns release headers oldest first. An empty loopType
// lists every loop type.
func (s *PostgresStorage) ListReleases(ctx context.Context, loopType types.LoopType) ([]*types.ReleaseInfo, error) {
	query := `
		SELECT r.loop_type, r.id, r.created_at, r.description,
		       (SELECT COUNT(*) FROM motifs m WHERE m.loop_type = r.loop_type AND m.release_id = r.id)
		FROM releases r
	`
	var args []interface{}
	if loopType != "" {
		query += " WHERE r.loop_type = $1"
		args = append(args, string(loopType))
	}
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list releases: %w", err)
	}
	defer rows.Close()

	var out []*types.ReleaseInfo
	for rows.Next() {
		info := &types.ReleaseInfo{}
		var lt string
		var motifs int64
		if err := rows.Scan(&lt, &info.ID, &info.Date, &info.Description, &motifs); err != nil {
			return nil, fmt.Errorf("failed to scan release: %w", err)
		}
		info.LoopType = types.LoopType(lt)
		info.Date = info.Date.UTC()
		info.Motifs = int(motifs)
		out = append(out, info)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].LoopType != out[j].LoopType {
			return out[i].LoopType < out[j].LoopType
		}
		return types.CompareReleaseIDs(out[i].ID, out[j].ID) < 0
	})
	return out, nil
}

// KnownHandles returns every handle ever stored.
func (s *PostgresStorage) KnownHandles(ctx context.Context) (map[string]struct{}, error) {
	rows, err := s.pool.Query(ctx, `SELECT handle FROM handles`)
	if err != nil {
		return nil, fmt.Errorf("failed to get handles: %w", err)
	}
	defer rows.Close()
	out := make(map[string]struct{})
	for rows.Next() {
		var h string
		if err := rows.Scan(&h); err != nil {
			return nil, fmt.Errorf("failed to scan handle: %w", err)
		}
		out[h] = struct{}{}
	}
	return out, rows.Err()
}

// NamingState replays every release of loopType, oldest first.
func (s *PostgresStorage) NamingState(ctx context.Context, loopType types.LoopType) (types.NamingState, error) {
	infos, err := s.ListReleases(ctx, loopType)
	if err != nil {
		return nil, err
	}
	state := make(types.NamingState)
	for _, info := range infos {
		rel, err := s.GetRelease(ctx, info.LoopType, info.ID)
		if err != nil {
			return nil, err
		}
		state.Record(rel)
	}
	return state, nil
}
