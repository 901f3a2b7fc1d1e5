package storage

import "github.com/jackc/pgx/v4"

type memberRow struct {
	chatID, userID int64
}

type memberBulk struct {
	rows []memberRow
	idx  int
}

func (r memberRow) toInterface() []interface{} {
	return []interface{}{r.chatID, r.userID}
}

func copyFromMembers(rows []memberRow) pgx.CopyFromSource {
	return &memberBulk{
		rows: rows,
		idx:  -1,
	}
}

func (mb *memberBulk) Next() bool {
	mb.idx++
	return mb.idx < len(mb.rows)
}

func (mb *memberBulk) Values() ([]interface{}, error) {
	return mb.rows[mb.idx].toInterface(), nil
}

func (mb *memberBulk) Err() error {
	return nil
}
