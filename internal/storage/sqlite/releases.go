package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"sort"

	"github.com/rna3dhub/motifatlas/internal/types"
)

// CreateRelease stores rel and all its motifs in one transaction. An
// existing (loop type, id) is rejected with types.ErrReleaseExists.
func (s *SQLiteStorage) CreateRelease(ctx context.Context, rel *types.Release) error {
	if err := rel.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}
	major, minor, err := types.ParseReleaseID(rel.ID)
	if err != nil {
		return err
	}

	return s.withImmediateTx(ctx, func(conn *sql.Conn) error {
		var n int
		if err := conn.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM releases WHERE loop_type = ? AND id = ?`,
			rel.LoopType, rel.ID).Scan(&n); err != nil {
			return fmt.Errorf("failed to check release: %w", err)
		}
		if n > 0 {
			return fmt.Errorf("%w: %s %s", types.ErrReleaseExists, rel.LoopType, rel.ID)
		}

		if _, err := conn.ExecContext(ctx, `
			INSERT INTO releases (loop_type, id, major, minor, created_at, description)
			VALUES (?, ?, ?, ?, ?, ?)
		`, rel.LoopType, rel.ID, major, minor, formatTime(rel.Date), rel.Description); err != nil {
			return fmt.Errorf("failed to insert release: %w", err)
		}

		for i := range rel.Motifs {
			if err := insertMotif(ctx, conn, rel, i); err != nil {
				return err
			}
		}
		return nil
	})
}

func insertMotif(ctx context.Context, conn *sql.Conn, rel *types.Release, pos int) error {
	g := &rel.Motifs[pos]
	h := g.Identity.Handle
	if _, err := conn.ExecContext(ctx, `
		INSERT INTO motifs (loop_type, release_id, handle, version, name, kind, comment, signature, position)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, rel.LoopType, rel.ID, h, g.Identity.Version, g.Name, g.Identity.Kind,
		g.Identity.Comment, g.Signature, pos); err != nil {
		return fmt.Errorf("failed to insert motif %s: %w", g.MotifID(), err)
	}
	for j, loop := range g.Members {
		if _, err := conn.ExecContext(ctx, `
			INSERT INTO motif_members (loop_type, release_id, handle, loop_id, position)
			VALUES (?, ?, ?, ?, ?)
		`, rel.LoopType, rel.ID, h, loop, j); err != nil {
			return fmt.Errorf("failed to insert member %s of %s: %w", loop, g.MotifID(), err)
		}
	}
	for _, p := range g.Parents {
		if _, err := conn.ExecContext(ctx, `
			INSERT INTO motif_parents (loop_type, release_id, handle, parent_id)
			VALUES (?, ?, ?, ?)
		`, rel.LoopType, rel.ID, h, p.String()); err != nil {
			return fmt.Errorf("failed to insert parent %s of %s: %w", p, g.MotifID(), err)
		}
	}
	if _, err := conn.ExecContext(ctx, `
		INSERT INTO handles (handle, loop_type, release_id) VALUES (?, ?, ?)
		ON CONFLICT (handle) DO NOTHING
	`, h, rel.LoopType, rel.ID); err != nil {
		return fmt.Errorf("failed to record handle %s: %w", h, err)
	}
	return nil
}

// GetRelease returns the release or nil if it does not exist.
func (s *SQLiteStorage) GetRelease(ctx context.Context, loopType types.LoopType, id string) (*types.Release, error) {
	rel := &types.Release{ID: id, LoopType: loopType}
	var created string
	err := s.db.QueryRowContext(ctx, `
		SELECT created_at, description FROM releases WHERE loop_type = ? AND id = ?
	`, loopType, id).Scan(&created, &rel.Description)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get release %s %s: %w", loopType, id, err)
	}
	if rel.Date, err = parseTime(created); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT handle, version, name, kind, comment, signature
		FROM motifs WHERE loop_type = ? AND release_id = ?
		ORDER BY position
	`, loopType, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get motifs: %w", err)
	}
	index := make(map[string]int)
	for rows.Next() {
		g := types.NamedGroup{LoopType: loopType}
		if err := rows.Scan(&g.Identity.Handle, &g.Identity.Version, &g.Name,
			&g.Identity.Kind, &g.Identity.Comment, &g.Signature); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan motif: %w", err)
		}
		index[g.Identity.Handle] = len(rel.Motifs)
		rel.Motifs = append(rel.Motifs, g)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	rows, err = s.db.QueryContext(ctx, `
		SELECT handle, loop_id FROM motif_members
		WHERE loop_type = ? AND release_id = ?
		ORDER BY handle, position
	`, loopType, id)
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

	rows, err = s.db.QueryContext(ctx, `
		SELECT handle, parent_id FROM motif_parents
		WHERE loop_type = ? AND release_id = ?
		ORDER BY handle, parent_id
	`, loopType, id)
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
func (s *SQLiteStorage) LatestRelease(ctx context.Context, loopType types.LoopType) (*types.Release, error) {
	var id string
	err := s.db.QueryRowContext(ctx, `
		SELECT id FROM releases WHERE loop_type = ?
		ORDER BY major DESC, minor DESC LIMIT 1
	`, loopType).Scan(&id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find latest release: %w", err)
	}
	return s.GetRelease(ctx, loopType, id)
}

// ListReleases returns release headers oldest first. An empty loopType
// lists every loop type.
func (s *SQLiteStorage) ListReleases(ctx context.Context, loopType types.LoopType) ([]*types.ReleaseInfo, error) {
	query := `
		SELECT r.loop_type, r.id, r.created_at, r.description,
		       (SELECT COUNT(*) FROM motifs m WHERE m.loop_type = r.loop_type AND m.release_id = r.id)
		FROM releases r
	`
	var args []interface{}
	if loopType != "" {
		query += " WHERE r.loop_type = ?"
		args = append(args, loopType)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list releases: %w", err)
	}
	defer rows.Close()

	var out []*types.ReleaseInfo
	for rows.Next() {
		info := &types.ReleaseInfo{}
		var created string
		if err := rows.Scan(&info.LoopType, &info.ID, &created, &info.Description, &info.Motifs); err != nil {
			return nil, fmt.Errorf("failed to scan release: %w", err)
		}
		if info.Date, err = parseTime(created); err != nil {
			return nil, err
		}
		out = append(out, info)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	sortReleaseInfos(out)
	return out, nil
}

func sortReleaseInfos(infos []*types.ReleaseInfo) {
	sort.SliceStable(infos, func(i, j int) bool {
		if infos[i].LoopType != infos[j].LoopType {
			return infos[i].LoopType < infos[j].LoopType
		}
		return types.CompareReleaseIDs(infos[i].ID, infos[j].ID) < 0
	})
}

// KnownHandles returns every handle ever stored.
func (s *SQLiteStorage) KnownHandles(ctx context.Context) (map[string]struct{}, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT handle FROM handles`)
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
func (s *SQLiteStorage) NamingState(ctx context.Context, loopType types.LoopType) (types.NamingState, error) {
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
