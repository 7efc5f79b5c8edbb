package service

import (
	"errors"
	"testing"

	"github.com/ndthien/promptshrink/config"
	"github.com/ndthien/promptshrink/internal/model"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

type fakeUserRepo struct {
	users map[string]*model.User
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[string]*model.User)}
}

func (f *fakeUserRepo) Create(user *model.User) error {
	if _, ok := f.users[user.Login]; ok {
		return gorm.ErrDuplicatedKey
	}
	f.users[user.Login] = user
	return nil
}

func (f *fakeUserRepo) FindByLogin(login string) (*model.User, error) {
	user, ok := f.users[login]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return user, nil
}

func (f *fakeUserRepo) ExistsByLoginOrEmail(login, email string) (bool, error) {
	for _, u := range f.users {
		if u.Login == login || u.Email == email {
			return true, nil
		}
	}
	return false, nil
}

func seederConfig(login, email, password string) *config.Config {
	cfg := &config.Config{SaltRounds: bcrypt.MinCost}
	cfg.Admin.DefaultLogin = login
	cfg.Admin.DefaultEmail = email
	cfg.Admin.DefaultPassword = password
	return cfg
}

func TestSeedDefaultAdminCreatesAdministrator(t *testing.T) {
	repo := newFakeUserRepo()
	seeder := NewSeederService(seederConfig("root", "root@example.com", "hunter22"), repo)

	if err := seeder.SeedDefaultAdmin(); err != nil {
		t.Fatalf("SeedDefaultAdmin: %v", err)
	}

	admin, ok := repo.users["root"]
	if !ok {
		t.Fatal("administrator was not created")
	}
	if !admin.IsAdmin {
		t.Fatal("seeded user must be an administrator")
	}
	if admin.PasswordHash == "hunter22" {
		t.Fatal("password must be stored hashed")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(admin.PasswordHash), []byte("hunter22")); err != nil {
		t.Fatalf("stored hash does not verify: %v", err)
	}
}

func TestSeedDefaultAdminIsIdempotent(t *testing.T) {
	repo := newFakeUserRepo()
	seeder := NewSeederService(seederConfig("root", "root@example.com", "hunter22"), repo)

	if err := seeder.SeedDefaultAdmin(); err != nil {
		t.Fatal(err)
	}
	first := repo.users["root"]
	if err := seeder.SeedDefaultAdmin(); err != nil {
		t.Fatalf("second run must not fail: %v", err)
	}
	if repo.users["root"] != first {
		t.Fatal("second run must not replace the existing administrator")
	}
	if len(repo.users) != 1 {
		t.Fatalf("expected exactly one user, got %d", len(repo.users))
	}
}

func TestSeedDefaultAdminSkipsConflictingEmail(t *testing.T) {
	repo := newFakeUserRepo()
	repo.users["someone"] = &model.User{Login: "someone", Email: "root@example.com"}
	seeder := NewSeederService(seederConfig("root", "root@example.com", "hunter22"), repo)

	if err := seeder.SeedDefaultAdmin(); err != nil {
		t.Fatalf("an existing email must make seeding a no-op, got %v", err)
	}
	if _, created := repo.users["root"]; created {
		t.Fatal("no administrator must be created when the email is taken")
	}
}

func TestSeedDefaultAdminSkipsWhenUnconfigured(t *testing.T) {
	repo := newFakeUserRepo()
	seeder := NewSeederService(seederConfig("", "", ""), repo)

	if err := seeder.SeedDefaultAdmin(); err != nil {
		t.Fatalf("missing configuration must not be an error: %v", err)
	}
	if len(repo.users) != 0 {
		t.Fatal("no user must be created without configuration")
	}
}

type failingUserRepo struct {
	*fakeUserRepo
}

func (f *failingUserRepo) Create(*model.User) error { return errors.New("connection refused") }

func TestSeedDefaultAdminPropagatesCreateErrors(t *testing.T) {
	repo := &failingUserRepo{newFakeUserRepo()}
	seeder := NewSeederService(seederConfig("root", "root@example.com", "hunter22"), repo)

	if err := seeder.SeedDefaultAdmin(); err == nil {
		t.Fatal("database failures during seeding must surface")
	}
}
