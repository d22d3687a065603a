package main

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// memStore is an in-memory Store used by the handler tests.
type memStore struct {
	mu           sync.Mutex
	nextID       int64
	users        map[int64]User
	categories   map[int64]Category
	transactions map[int64]Transaction
	now          time.Time
}

func newMemStore() *memStore {
	return &memStore{
		users:        map[int64]User{},
		categories:   map[int64]Category{},
		transactions: map[int64]Transaction{},
		now:          time.Date(2024, 5, 15, 12, 0, 0, 0, time.UTC),
	}
}

func (m *memStore) id() int64 {
	m.nextID++
	return m.nextID
}

func (m *memStore) CreateUser(_ context.Context, u User) (User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.users {
		if existing.Email == u.Email {
			return User{}, fmt.Errorf("create user %q: %w", u.Email, ErrDuplicateEmail)
		}
	}
	u.Id = m.id()
	m.users[u.Id] = u
	return u, nil
}

func (m *memStore) GetUserByEmail(_ context.Context, email string) (User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == email {
			return u, nil
		}
	}
	return User{}, fmt.Errorf("user %q: %w", email, ErrNotFound)
}

func (m *memStore) CreateTransaction(_ context.Context, t Transaction) (Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t.Id = m.id()
	m.transactions[t.Id] = t
	return t, nil
}

func (m *memStore) UpdateTransaction(_ context.Context, id int64, patch TransactionPatch) (Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.transactions[id]
	if !ok {
		return Transaction{}, fmt.Errorf("transaction %d: %w", id, ErrNotFound)
	}
	if patch.Amount.Valid {
		t.Amount = patch.Amount.Decimal
	}
	if patch.CategoryId != nil {
		t.CategoryId = *patch.CategoryId
	}
	if patch.Date != nil {
		t.Date = *patch.Date
	}
	m.transactions[id] = t
	return t, nil
}

func (m *memStore) DeleteTransaction(_ context.Context, id int64) (Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.transactions[id]
	if !ok {
		return Transaction{}, fmt.Errorf("transaction %d: %w", id, ErrNotFound)
	}
	delete(m.transactions, id)
	return t, nil
}

func (m *memStore) ListExpensesBetween(_ context.Context, userID int64, from, to time.Time) ([]Expense, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	expenses := []Expense{}
	for _, t := range m.transactions {
		if t.UserId != userID || t.Date.Before(from) || !t.Date.Before(to) {
			continue
		}
		c, ok := m.categories[t.CategoryId]
		if !ok {
			continue
		}
		expenses = append(expenses, Expense{
			Id:             t.Id,
			Date:           t.Date,
			UserId:         t.UserId,
			CategoryTypeId: c.CategoryTypeId,
			CategoryId:     t.CategoryId,
			Name:           c.Name,
			Amount:         t.Amount,
		})
	}
	sort.Slice(expenses, func(i, j int) bool { return expenses[i].Id < expenses[j].Id })
	return expenses, nil
}

func (m *memStore) CreateCategory(_ context.Context, c Category) (Category, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c.Id = m.id()
	m.categories[c.Id] = c
	return c, nil
}

func (m *memStore) ListCategories(context.Context) ([]Category, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	categories := make([]Category, 0, len(m.categories))
	for _, c := range m.categories {
		categories = append(categories, c)
	}
	sort.Slice(categories, func(i, j int) bool { return categories[i].Id < categories[j].Id })
	return categories, nil
}

func (m *memStore) Now(context.Context) (time.Time, error) {
	return m.now, nil
}

// failingStore fails every call with err.
type failingStore struct {
	err error
}

func (f failingStore) CreateUser(context.Context, User) (User, error) { return User{}, f.err }

func (f failingStore) GetUserByEmail(context.Context, string) (User, error) { return User{}, f.err }

func (f failingStore) CreateTransaction(context.Context, Transaction) (Transaction, error) {
	return Transaction{}, f.err
}

func (f failingStore) UpdateTransaction(context.Context, int64, TransactionPatch) (Transaction, error) {
	return Transaction{}, f.err
}

func (f failingStore) DeleteTransaction(context.Context, int64) (Transaction, error) {
	return Transaction{}, f.err
}

func (f failingStore) ListExpensesBetween(context.Context, int64, time.Time, time.Time) ([]Expense, error) {
	return nil, f.err
}

func (f failingStore) CreateCategory(context.Context, Category) (Category, error) {
	return Category{}, f.err
}

func (f failingStore) ListCategories(context.Context) ([]Category, error) { return nil, f.err }

func (f failingStore) Now(context.Context) (time.Time, error) { return time.Time{}, f.err }

// recordingPublisher keeps every published event.
type recordingPublisher struct {
	mu     sync.Mutex
	events []TransactionEvent
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, event TransactionEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, event)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	types := make([]string, 0, len(p.events))
	for _, e := range p.events {
		types = append(types, e.Type)
	}
	return types
}
