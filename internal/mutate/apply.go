package mutate

import "crm-cli/internal/model"

// ApplyOfferStatus patches the status of the matching row to the confirmed
// status. Only the status field changes.
func ApplyOfferStatus(rows []model.Offer, o Outcome) ([]model.Offer, bool) {
	if o.Kind != KindOffer || !o.Applied() {
		return rows, false
	}
	for i := range rows {
		if rows[i].ID == o.ID {
			out := append([]model.Offer(nil), rows...)
			out[i].Status = model.OfferStatus(o.Confirmed)
			return out, true
		}
	}
	return rows, false
}

func ApplyTaskStatus(rows []model.Task, o Outcome) ([]model.Task, bool) {
	if o.Kind != KindTask || !o.Applied() {
		return rows, false
	}
	for i := range rows {
		if rows[i].ID == o.ID {
			out := append([]model.Task(nil), rows...)
			out[i].Status = model.TaskStatus(o.Confirmed)
			return out, true
		}
	}
	return rows, false
}

// Without drops the row with id after a confirmed delete.
func Without[T any](rows []T, id int64, idOf func(T) int64) []T {
	out := make([]T, 0, len(rows))
	for _, r := range rows {
		if idOf(r) != id {
			out = append(out, r)
		}
	}
	return out
}

// Upsert replaces the row with the same id, or appends it.
func Upsert[T any](rows []T, v T, idOf func(T) int64) []T {
	out := append([]T(nil), rows...)
	for i := range out {
		if idOf(out[i]) == idOf(v) {
			out[i] = v
			return out
		}
	}
	return append(out, v)
}

func CustomerID(c model.Customer) int64 { return c.ID }
func OfferID(o model.Offer) int64       { return o.ID }
func TaskID(t model.Task) int64         { return t.ID }
func UserID(u model.User) int64         { return u.ID }
