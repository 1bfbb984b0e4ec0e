package repository

// SetQueryBatch lets tests cross keyset batch boundaries with a handful of rows.
func (r *MovementRepository) SetQueryBatch(n int) { r.batch = n }
