package memory

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	domain "github.com/Heang0/Digital-Label-sub001/internal/domain"
	"github.com/Heang0/Digital-Label-sub001/internal/repositories"
)

type companyRepo struct{ r *Registry }

func (c companyRepo) Get(_ context.Context, companyID string) (domain.Company, error) {
	c.r.mu.Lock()
	defer c.r.mu.Unlock()
	company, ok := c.r.companies[companyID]
	if !ok {
		return domain.Company{}, notFound("companies.get", "company")
	}
	return company, nil
}

type userRepo struct{ r *Registry }

func (u userRepo) Get(_ context.Context, uid string) (domain.User, error) {
	u.r.mu.Lock()
	defer u.r.mu.Unlock()
	user, ok := u.r.users[uid]
	if !ok {
		return domain.User{}, notFound("users.get", "user")
	}
	return user, nil
}

type branchRepo struct{ r *Registry }

func (b branchRepo) Get(_ context.Context, branchID string) (domain.Branch, error) {
	b.r.mu.Lock()
	defer b.r.mu.Unlock()
	branch, ok := b.r.branches[branchID]
	if !ok {
		return domain.Branch{}, notFound("branches.get", "branch")
	}
	return branch, nil
}

func (b branchRepo) ListByCompany(_ context.Context, companyID string) ([]domain.Branch, error) {
	b.r.mu.Lock()
	defer b.r.mu.Unlock()
	out := make([]domain.Branch, 0)
	for _, branch := range b.r.branches {
		if branch.CompanyID == companyID {
			out = append(out, branch)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

func (b branchRepo) Save(_ context.Context, branch domain.Branch) error {
	b.r.mu.Lock()
	defer b.r.mu.Unlock()
	b.r.branches[branch.ID] = branch
	return nil
}

func (b branchRepo) Delete(_ context.Context, branchID string) error {
	b.r.mu.Lock()
	defer b.r.mu.Unlock()
	delete(b.r.branches, branchID)
	return nil
}

type categoryRepo struct{ r *Registry }

func (c categoryRepo) Get(_ context.Context, categoryID string) (domain.Category, error) {
	c.r.mu.Lock()
	defer c.r.mu.Unlock()
	category, ok := c.r.categories[categoryID]
	if !ok {
		return domain.Category{}, notFound("categories.get", "category")
	}
	return category, nil
}

func (c categoryRepo) ListByCompany(_ context.Context, companyID string) ([]domain.Category, error) {
	c.r.mu.Lock()
	defer c.r.mu.Unlock()
	out := make([]domain.Category, 0)
	for _, category := range c.r.categories {
		if category.CompanyID == companyID {
			out = append(out, category)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (c categoryRepo) Save(_ context.Context, category domain.Category) error {
	c.r.mu.Lock()
	defer c.r.mu.Unlock()
	c.r.categories[category.ID] = category
	return nil
}

func (c categoryRepo) Delete(_ context.Context, categoryID string) error {
	c.r.mu.Lock()
	defer c.r.mu.Unlock()
	delete(c.r.categories, categoryID)
	return nil
}

type productRepo struct{ r *Registry }

func (p productRepo) Get(_ context.Context, productID string) (domain.Product, error) {
	p.r.mu.Lock()
	defer p.r.mu.Unlock()
	product, ok := p.r.products[productID]
	if !ok {
		return domain.Product{}, notFound("products.get", "product")
	}
	return product, nil
}

func (p productRepo) ListByCompany(_ context.Context, companyID string) ([]domain.Product, error) {
	p.r.mu.Lock()
	defer p.r.mu.Unlock()
	out := make([]domain.Product, 0)
	for _, product := range p.r.products {
		if product.CompanyID == companyID {
			out = append(out, product)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (p productRepo) Save(_ context.Context, product domain.Product) error {
	p.r.mu.Lock()
	defer p.r.mu.Unlock()
	p.r.products[product.ID] = product
	return nil
}

func (p productRepo) UpdateDisplay(_ context.Context, productID, name, description string, at time.Time) error {
	p.r.mu.Lock()
	defer p.r.mu.Unlock()
	product, ok := p.r.products[productID]
	if !ok {
		return notFound("products.updateDisplay", "product")
	}
	product.Name = name
	product.Description = description
	product.UpdatedAt = at
	p.r.products[productID] = product
	return nil
}

func (p productRepo) RenameCategory(_ context.Context, companyID, from, to string, at time.Time) (int, error) {
	p.r.mu.Lock()
	defer p.r.mu.Unlock()
	changed := 0
	for id, product := range p.r.products {
		if product.CompanyID != companyID || product.Category != from {
			continue
		}
		product.Category = to
		product.UpdatedAt = at
		p.r.products[id] = product
		changed++
	}
	return changed, nil
}

func (p productRepo) Delete(_ context.Context, productID string) error {
	p.r.mu.Lock()
	defer p.r.mu.Unlock()
	delete(p.r.products, productID)
	return nil
}

var errMissingPair = errors.New("branch id and product id are required")

type branchProductRepo struct{ r *Registry }

func (b branchProductRepo) Get(_ context.Context, branchID, productID string) (domain.BranchProduct, error) {
	b.r.mu.Lock()
	defer b.r.mu.Unlock()
	item, ok := b.r.branchProducts[domain.BranchProductID(branchID, productID)]
	if !ok {
		return domain.BranchProduct{}, notFound("branch_products.get", "branch product")
	}
	return item, nil
}

func (b branchProductRepo) ListByBranch(_ context.Context, branchID string) ([]domain.BranchProduct, error) {
	b.r.mu.Lock()
	defer b.r.mu.Unlock()
	out := make([]domain.BranchProduct, 0)
	for _, item := range b.r.branchProducts {
		if item.BranchID == branchID {
			out = append(out, item)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ProductID < out[j].ProductID })
	return out, nil
}

func (b branchProductRepo) UpsertPrice(_ context.Context, in repositories.BranchProductUpsert) (domain.BranchProduct, error) {
	if strings.TrimSpace(in.BranchID) == "" || strings.TrimSpace(in.ProductID) == "" {
		return domain.BranchProduct{}, errMissingPair
	}
	b.r.mu.Lock()
	defer b.r.mu.Unlock()
	id := domain.BranchProductID(in.BranchID, in.ProductID)
	item, ok := b.r.branchProducts[id]
	if !ok {
		item = domain.BranchProduct{
			ID:        id,
			BranchID:  in.BranchID,
			CompanyID: in.CompanyID,
			ProductID: in.ProductID,
			Status:    domain.StockStatusInStock,
		}
	}
	item.CurrentPrice = in.Price
	item.LastUpdated = in.At
	b.r.branchProducts[id] = item
	return item, nil
}

func (b branchProductRepo) UpdateStock(_ context.Context, branchID, productID string, stock, minStock int, at time.Time) (domain.BranchProduct, error) {
	b.r.mu.Lock()
	defer b.r.mu.Unlock()
	id := domain.BranchProductID(branchID, productID)
	item, ok := b.r.branchProducts[id]
	if !ok {
		return domain.BranchProduct{}, notFound("branch_products.updateStock", "branch product")
	}
	item.Stock = stock
	item.MinStock = minStock
	item.Status = domain.StockStatusFor(stock, minStock)
	item.LastUpdated = at
	b.r.branchProducts[id] = item
	return item, nil
}
