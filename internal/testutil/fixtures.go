package testutil

import (
	"fmt"
	"sync/atomic"
	"testing"

	"tallybook/internal/models"
	"tallybook/internal/money"

	"gorm.io/gorm"
)

// counter provides unique values across fixtures within a test run.
var counter atomic.Int64

func nextID() int64 {
	return counter.Add(1)
}

// CreateTestUser creates a user with a unique email.
func CreateTestUser(t *testing.T, db *gorm.DB) *models.User {
	t.Helper()
	email := fmt.Sprintf("user%d@test.com", nextID())
	return CreateTestUserWithEmail(t, db, email)
}

// CreateTestUserWithEmail creates a user with the given email.
func CreateTestUserWithEmail(t *testing.T, db *gorm.DB, email string) *models.User {
	t.Helper()

	user := &models.User{
		Email:     email,
		FirstName: "Test",
		LastName:  fmt.Sprintf("User %d", nextID()),
		IsActive:  true,
	}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("failed to create test user: %v", err)
	}
	return user
}

// CreateTestAccount creates a USD account with zero balance.
func CreateTestAccount(t *testing.T, db *gorm.DB, ownerID string) *models.Account {
	t.Helper()
	return CreateTestAccountWithBalance(t, db, ownerID, "0.00")
}

// CreateTestAccountWithBalance creates a USD account whose initial and
// current balance are both balance.
func CreateTestAccountWithBalance(t *testing.T, db *gorm.DB, ownerID string, balance string) *models.Account {
	t.Helper()

	amount := money.MustParse(balance)
	account := &models.Account{
		OwnerID:        ownerID,
		Name:           fmt.Sprintf("Test Account %d", nextID()),
		Currency:       "USD",
		InitialBalance: amount,
		Balance:        amount,
		IsActive:       true,
	}
	if err := db.Create(account).Error; err != nil {
		t.Fatalf("failed to create test account: %v", err)
	}
	return account
}

// CreateTestCategory creates a category of the given type.
func CreateTestCategory(t *testing.T, db *gorm.DB, ownerID string, categoryType models.CategoryType) *models.Category {
	t.Helper()

	category := &models.Category{
		OwnerID: ownerID,
		Name:    fmt.Sprintf("Test Category %d", nextID()),
		Type:    categoryType,
	}
	if err := db.Create(category).Error; err != nil {
		t.Fatalf("failed to create test category: %v", err)
	}
	return category
}
