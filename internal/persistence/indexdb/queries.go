package indexdb

import (
	"context"
	"database/sql"
)

// CalcRow is one indexed calculation.
type CalcRow struct {
	Tick       uint64
	Start      [3]int
	GoalText   string
	Result     string
	NumNodes   int
	DurationMS float64
	PathLength int
	PathCost   float64
	Reaches    bool
	PlanAhead  bool
	Error      string
}

// ResultCounts returns how many calculations ended with each result.
func (s *SQLiteIndex) ResultCounts(ctx context.Context) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT result, COUNT(*) FROM calcs GROUP BY result`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := map[string]int{}
	for rows.Next() {
		var (
			res string
			n   int
		)
		if err := rows.Scan(&res, &n); err != nil {
			return nil, err
		}
		out[res] = n
	}
	return out, rows.Err()
}

// RecentCalcs returns up to limit calculations, newest first.
func (s *SQLiteIndex) RecentCalcs(ctx context.Context, limit int) ([]CalcRow, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `SELECT tick,start_x,start_y,start_z,goal_text,result,num_nodes,duration_ms,path_length,path_cost,reaches,plan_ahead,error
		FROM calcs ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []CalcRow
	for rows.Next() {
		var (
			r                  CalcRow
			tick               int64
			reaches, planAhead int
			errText            sql.NullString
		)
		if err := rows.Scan(&tick, &r.Start[0], &r.Start[1], &r.Start[2], &r.GoalText, &r.Result, &r.NumNodes, &r.DurationMS,
			&r.PathLength, &r.PathCost, &reaches, &planAhead, &errText); err != nil {
			return nil, err
		}
		r.Tick = uint64(tick)
		r.Reaches = reaches != 0
		r.PlanAhead = planAhead != 0
		r.Error = errText.String
		out = append(out, r)
	}
	return out, rows.Err()
}
