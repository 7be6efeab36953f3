package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"tallybook/internal/logger"
	"tallybook/internal/middleware"
	"tallybook/internal/models"
	"tallybook/internal/money"
	"tallybook/internal/pagination"
	"tallybook/internal/rollup"
	"tallybook/internal/services"
	"tallybook/internal/validator"
)

const (
	actorID       = "0192d5a0-0000-7000-8000-000000000001"
	accountID     = "0192d5a0-0000-7000-8000-000000000002"
	categoryID    = "0192d5a0-0000-7000-8000-000000000003"
	transactionID = "0192d5a0-0000-7000-8000-000000000004"
)

// --- mock services ---

type mockUserService struct {
	createUserFn  func(email, firstName, lastName string) (*models.User, error)
	getUserByIDFn func(userID string) (*models.User, error)
}

func (m *mockUserService) CreateUser(email, firstName, lastName string) (*models.User, error) {
	if m.createUserFn != nil {
		return m.createUserFn(email, firstName, lastName)
	}
	return &models.User{Email: email}, nil
}

func (m *mockUserService) GetUserByID(userID string) (*models.User, error) {
	if m.getUserByIDFn != nil {
		return m.getUserByIDFn(userID)
	}
	return &models.User{Base: models.Base{ID: userID}}, nil
}

var _ services.UserServicer = (*mockUserService)(nil)

type mockAccountService struct {
	createAccountFn  func(ownerID, name, currency string, initialBalance money.Amount) (*models.Account, error)
	getAccountByIDFn func(accountID string) (*models.Account, error)
}

func (m *mockAccountService) CreateAccount(ownerID, name, currency string, initialBalance money.Amount) (*models.Account, error) {
	if m.createAccountFn != nil {
		return m.createAccountFn(ownerID, name, currency, initialBalance)
	}
	return &models.Account{OwnerID: ownerID, Name: name, InitialBalance: initialBalance, Balance: initialBalance}, nil
}

func (m *mockAccountService) GetAccountByID(accountID string) (*models.Account, error) {
	if m.getAccountByIDFn != nil {
		return m.getAccountByIDFn(accountID)
	}
	return &models.Account{Base: models.Base{ID: accountID}}, nil
}

func (m *mockAccountService) GetAccountIDs() ([]string, error) { return nil, nil }

func (m *mockAccountService) GetBalance(string) (money.Amount, error) { return money.Zero, nil }

func (m *mockAccountService) LockForUpdate(*gorm.DB, string) (*models.Account, error) {
	return &models.Account{}, nil
}

func (m *mockAccountService) SetBalance(*gorm.DB, string, money.Amount, int64) error { return nil }

var _ services.AccountServicer = (*mockAccountService)(nil)

type mockCategoryService struct {
	createCategoryFn  func(ownerID, name string, categoryType models.CategoryType, description string) (*models.Category, error)
	getCategoryByIDFn func(categoryID string) (*models.Category, error)
}

func (m *mockCategoryService) CreateCategory(ownerID, name string, categoryType models.CategoryType, description string) (*models.Category, error) {
	if m.createCategoryFn != nil {
		return m.createCategoryFn(ownerID, name, categoryType, description)
	}
	return &models.Category{OwnerID: ownerID, Name: name, Type: categoryType}, nil
}

func (m *mockCategoryService) GetCategoryByID(categoryID string) (*models.Category, error) {
	if m.getCategoryByIDFn != nil {
		return m.getCategoryByIDFn(categoryID)
	}
	return &models.Category{Base: models.Base{ID: categoryID}}, nil
}

var _ services.CategoryServicer = (*mockCategoryService)(nil)

type mockLedgerService struct {
	getAccountEntriesFn     func(accountID string, page pagination.PageRequest) (*pagination.PageResponse[models.LedgerEntry], error)
	getTransactionEntriesFn func(transactionID string) ([]models.LedgerEntry, error)
	replayFn                func(accountID string) (*services.LedgerReplay, error)
}

func (m *mockLedgerService) Append(*gorm.DB, services.LedgerEntryParams) (*models.LedgerEntry, error) {
	return &models.LedgerEntry{}, nil
}

func (m *mockLedgerService) Reverse(*gorm.DB, string, string) (*models.LedgerEntry, error) {
	return &models.LedgerEntry{}, nil
}

func (m *mockLedgerService) ReverseAndCorrect(*gorm.DB, string, services.LedgerCorrection) (*models.LedgerEntry, *models.LedgerEntry, error) {
	return &models.LedgerEntry{}, &models.LedgerEntry{}, nil
}

func (m *mockLedgerService) GetEntryByID(entryID string) (*models.LedgerEntry, error) {
	return &models.LedgerEntry{ID: entryID}, nil
}

func (m *mockLedgerService) GetAccountEntries(accountID string, page pagination.PageRequest) (*pagination.PageResponse[models.LedgerEntry], error) {
	if m.getAccountEntriesFn != nil {
		return m.getAccountEntriesFn(accountID, page)
	}
	resp := pagination.NewPageResponse([]models.LedgerEntry{}, page.Page, page.PageSize, 0)
	return &resp, nil
}

func (m *mockLedgerService) GetTransactionEntries(transactionID string) ([]models.LedgerEntry, error) {
	if m.getTransactionEntriesFn != nil {
		return m.getTransactionEntriesFn(transactionID)
	}
	return nil, nil
}

func (m *mockLedgerService) Replay(accountID string) (*services.LedgerReplay, error) {
	if m.replayFn != nil {
		return m.replayFn(accountID)
	}
	return &services.LedgerReplay{AccountID: accountID, Consistent: true}, nil
}

var _ services.LedgerServicer = (*mockLedgerService)(nil)

type mockRollupService struct {
	listSummariesFn func(accountID string, granularity rollup.Granularity, from, to time.Time) ([]rollup.Row, error)
}

func (m *mockRollupService) Apply(*gorm.DB, rollup.Change) error { return nil }

func (m *mockRollupService) ApplyDeltas(*gorm.DB, []rollup.Delta) error { return nil }

func (m *mockRollupService) ListSummaries(accountID string, granularity rollup.Granularity, from, to time.Time) ([]rollup.Row, error) {
	if m.listSummariesFn != nil {
		return m.listSummariesFn(accountID, granularity, from, to)
	}
	return nil, nil
}

var _ services.RollupServicer = (*mockRollupService)(nil)

type mockAuditService struct {
	getAuditTrailFn func(filter services.AuditFilter, page pagination.PageRequest) (*pagination.PageResponse[models.AuditLog], error)
}

func (m *mockAuditService) Append(*gorm.DB, services.AuditEntry) (*models.AuditLog, error) {
	return &models.AuditLog{}, nil
}

func (m *mockAuditService) GetAuditTrail(filter services.AuditFilter, page pagination.PageRequest) (*pagination.PageResponse[models.AuditLog], error) {
	if m.getAuditTrailFn != nil {
		return m.getAuditTrailFn(filter, page)
	}
	resp := pagination.NewPageResponse([]models.AuditLog{}, page.Page, page.PageSize, 0)
	return &resp, nil
}

var _ services.AuditServicer = (*mockAuditService)(nil)

type mockTransactionService struct {
	createTransactionFn  func(actorID string, input services.CreateTransactionInput) (*models.Transaction, error)
	updateTransactionFn  func(actorID, transactionID string, input services.UpdateTransactionInput) (*models.Transaction, error)
	deleteTransactionFn  func(actorID, transactionID, reason string) error
	getTransactionByIDFn func(transactionID string) (*models.Transaction, error)
	getTransactionsFn    func(filter services.TransactionFilter, page pagination.PageRequest) (*pagination.PageResponse[models.Transaction], error)
}

func (m *mockTransactionService) CreateTransaction(actorID string, input services.CreateTransactionInput) (*models.Transaction, error) {
	if m.createTransactionFn != nil {
		return m.createTransactionFn(actorID, input)
	}
	return &models.Transaction{}, nil
}

func (m *mockTransactionService) UpdateTransaction(actorID, transactionID string, input services.UpdateTransactionInput) (*models.Transaction, error) {
	if m.updateTransactionFn != nil {
		return m.updateTransactionFn(actorID, transactionID, input)
	}
	return &models.Transaction{}, nil
}

func (m *mockTransactionService) DeleteTransaction(actorID, transactionID, reason string) error {
	if m.deleteTransactionFn != nil {
		return m.deleteTransactionFn(actorID, transactionID, reason)
	}
	return nil
}

func (m *mockTransactionService) GetTransactionByID(transactionID string) (*models.Transaction, error) {
	if m.getTransactionByIDFn != nil {
		return m.getTransactionByIDFn(transactionID)
	}
	return &models.Transaction{}, nil
}

func (m *mockTransactionService) GetTransactions(filter services.TransactionFilter, page pagination.PageRequest) (*pagination.PageResponse[models.Transaction], error) {
	if m.getTransactionsFn != nil {
		return m.getTransactionsFn(filter, page)
	}
	resp := pagination.NewPageResponse([]models.Transaction{}, page.Page, page.PageSize, 0)
	return &resp, nil
}

var _ services.TransactionServicer = (*mockTransactionService)(nil)

type mockConsistencyService struct {
	recomputeFn func(accountID string, from, to time.Time, granularity rollup.Granularity) (*services.DriftReport, error)
	repairFn    func(actorID, accountID string, from, to time.Time, granularity rollup.Granularity) (*services.DriftReport, error)
}

func (m *mockConsistencyService) Recompute(accountID string, from, to time.Time, granularity rollup.Granularity) (*services.DriftReport, error) {
	if m.recomputeFn != nil {
		return m.recomputeFn(accountID, from, to, granularity)
	}
	return &services.DriftReport{AccountID: accountID, Granularity: granularity}, nil
}

func (m *mockConsistencyService) Repair(actorID, accountID string, from, to time.Time, granularity rollup.Granularity) (*services.DriftReport, error) {
	if m.repairFn != nil {
		return m.repairFn(actorID, accountID, from, to, granularity)
	}
	return &services.DriftReport{AccountID: accountID, Granularity: granularity, Repaired: true}, nil
}

func (m *mockConsistencyService) ScanAccounts([]string, time.Time, time.Time, rollup.Granularity) ([]*services.DriftReport, error) {
	return nil, nil
}

var _ services.ConsistencyServicer = (*mockConsistencyService)(nil)

// --- test helpers ---

func init() {
	gin.SetMode(gin.TestMode)
	logger.Init("test")
	validator.Register()
}

// newRouter returns an engine whose routes run behind RequireActor.
func newRouter() (*gin.Engine, *gin.RouterGroup) {
	r := gin.New()
	return r, r.Group("", middleware.RequireActor())
}

func doRequest(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(middleware.ActorHeader, actorID)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func doAnonymousRequest(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func parseJSON(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var result map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to parse JSON response: %v\nbody: %s", err, rec.Body.String())
	}
	return result
}

func assertErrorCode(t *testing.T, result map[string]interface{}, code string) {
	t.Helper()
	errObj, ok := result["error"].(map[string]interface{})
	if !ok {
		t.Fatalf("expected error object in response, got: %v", result)
	}
	if errObj["code"] != code {
		t.Errorf("expected error code %q, got %q", code, errObj["code"])
	}
}

func assertStatus(t *testing.T, rec *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rec.Code != want {
		t.Fatalf("expected %d, got %d: %s", want, rec.Code, rec.Body.String())
	}
}
