package memory

import (
	"context"
	"sort"
	"strings"

	domain "github.com/Heang0/Digital-Label-sub001/internal/domain"
	"github.com/Heang0/Digital-Label-sub001/internal/repositories"
)

type labelRepo struct{ r *Registry }

type labelWatcher struct {
	companyID string
	branchID  string
	ch        chan []domain.Label
}

func (l labelRepo) Get(_ context.Context, id string) (domain.Label, error) {
	l.r.mu.Lock()
	defer l.r.mu.Unlock()
	label, ok := l.r.labels[id]
	if !ok {
		return domain.Label{}, notFound("labels.get", "label")
	}
	return cloneLabel(label), nil
}

func (l labelRepo) FindByLabelID(_ context.Context, labelID string) (domain.Label, error) {
	return l.find("labels.findByLabelId", func(label domain.Label) bool { return label.LabelID == labelID })
}

func (l labelRepo) FindByLabelCode(_ context.Context, labelCode string) (domain.Label, error) {
	return l.find("labels.findByLabelCode", func(label domain.Label) bool { return label.LabelCode == labelCode })
}

func (l labelRepo) find(op string, match func(domain.Label) bool) (domain.Label, error) {
	l.r.mu.Lock()
	defer l.r.mu.Unlock()
	ids := make([]string, 0, len(l.r.labels))
	for id := range l.r.labels {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		if label := l.r.labels[id]; match(label) {
			return cloneLabel(label), nil
		}
	}
	return domain.Label{}, notFound(op, "label")
}

func (l labelRepo) List(_ context.Context, companyID, branchID string) ([]domain.Label, error) {
	l.r.mu.Lock()
	defer l.r.mu.Unlock()
	return l.r.scopedLabels(companyID, branchID), nil
}

func (l labelRepo) Insert(_ context.Context, label domain.Label) error {
	if strings.TrimSpace(label.ID) == "" {
		return errMissingID
	}
	l.r.mu.Lock()
	defer l.r.mu.Unlock()
	if _, exists := l.r.labels[label.ID]; exists {
		return repositories.NewConflictError("labels.insert", errExists)
	}
	l.r.labels[label.ID] = cloneLabel(label)
	l.r.notifyLabels(label)
	return nil
}

func (l labelRepo) UpdatePricing(_ context.Context, id string, update repositories.LabelPriceUpdate) (domain.Label, error) {
	l.r.mu.Lock()
	defer l.r.mu.Unlock()
	label, ok := l.r.labels[id]
	if !ok {
		return domain.Label{}, notFound("labels.updatePricing", "label")
	}
	label.BasePrice = update.BasePrice
	label.CurrentPrice = update.CurrentPrice
	label.FinalPrice = update.FinalPrice
	label.Status = update.Status
	label.LastSync = update.LastSync
	label.UpdatedAt = update.LastSync
	label.DiscountPercent, label.DiscountPrice, label.DiscountEndAt = nil, nil, nil
	if d := update.Discount; d != nil {
		percent, price := d.Percent, d.Price
		label.DiscountPercent = &percent
		label.DiscountPrice = &price
		if d.EndAt != nil {
			end := *d.EndAt
			label.DiscountEndAt = &end
		}
	}
	if update.ProductName != nil {
		label.ProductName = *update.ProductName
	}
	if update.ProductSKU != nil {
		label.ProductSKU = *update.ProductSKU
	}
	l.r.labels[id] = label
	l.r.notifyLabels(label)
	return cloneLabel(label), nil
}

func (l labelRepo) Assign(_ context.Context, id string, a repositories.LabelAssignment) (domain.Label, error) {
	l.r.mu.Lock()
	defer l.r.mu.Unlock()
	label, ok := l.r.labels[id]
	if !ok {
		return domain.Label{}, notFound("labels.assign", "label")
	}
	label.ProductID = a.ProductID
	label.ProductName = a.ProductName
	label.ProductSKU = a.ProductSKU
	label.BasePrice = a.BasePrice
	label.CurrentPrice = a.BasePrice
	label.FinalPrice = a.BasePrice
	label.DiscountPercent, label.DiscountPrice, label.DiscountEndAt = nil, nil, nil
	label.Status = domain.LabelStatusSyncing
	label.LastSync = a.At
	label.UpdatedAt = a.At
	l.r.labels[id] = label
	l.r.notifyLabels(label)
	return cloneLabel(label), nil
}

// Watch delivers the current set immediately and again after every write in
// scope. Slow consumers only ever see the latest set.
func (l labelRepo) Watch(ctx context.Context, companyID, branchID string, fn func([]domain.Label)) error {
	w := &labelWatcher{companyID: companyID, branchID: branchID, ch: make(chan []domain.Label, 1)}
	l.r.mu.Lock()
	id := l.r.nextWID
	l.r.nextWID++
	l.r.watchers[id] = w
	w.ch <- l.r.scopedLabels(companyID, branchID)
	l.r.mu.Unlock()

	defer func() {
		l.r.mu.Lock()
		delete(l.r.watchers, id)
		l.r.mu.Unlock()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case set := <-w.ch:
			fn(set)
		}
	}
}

// notifyLabels must be called with r.mu held.
func (r *Registry) notifyLabels(changed domain.Label) {
	for _, w := range r.watchers {
		if w.companyID != changed.CompanyID {
			continue
		}
		if w.branchID != "" && w.branchID != changed.BranchID {
			continue
		}
		set := r.scopedLabels(w.companyID, w.branchID)
		select {
		case <-w.ch:
		default:
		}
		w.ch <- set
	}
}

func (r *Registry) scopedLabels(companyID, branchID string) []domain.Label {
	out := make([]domain.Label, 0)
	for _, label := range r.labels {
		if label.CompanyID != companyID {
			continue
		}
		if branchID != "" && label.BranchID != branchID {
			continue
		}
		out = append(out, cloneLabel(label))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LabelID < out[j].LabelID })
	return out
}

func cloneLabel(label domain.Label) domain.Label {
	if label.DiscountPercent != nil {
		v := *label.DiscountPercent
		label.DiscountPercent = &v
	}
	if label.DiscountPrice != nil {
		v := *label.DiscountPrice
		label.DiscountPrice = &v
	}
	if label.DiscountEndAt != nil {
		v := *label.DiscountEndAt
		label.DiscountEndAt = &v
	}
	return label
}
