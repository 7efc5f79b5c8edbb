package service

import (
	"fmt"

	"github.com/ndthien/promptshrink/config"
	"github.com/ndthien/promptshrink/internal/model"
	"github.com/ndthien/promptshrink/internal/repository"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"
)

// SeederService bootstraps the default administrator identity on
// startup. Idempotent across restarts.
type SeederService interface {
	SeedDefaultAdmin() error
}

type seederService struct {
	cfg      *config.Config
	userRepo repository.UserRepository
}

func NewSeederService(cfg *config.Config, userRepo repository.UserRepository) SeederService {
	return &seederService{cfg: cfg, userRepo: userRepo}
}

func (s *seederService) SeedDefaultAdmin() error {
	admin := s.cfg.Admin
	if admin.DefaultLogin == "" || admin.DefaultPassword == "" {
		log.Warn().Msg("Admin seeder: no default administrator configured, skipping")
		return nil
	}

	exists, err := s.userRepo.ExistsByLoginOrEmail(admin.DefaultLogin, admin.DefaultEmail)
	if err != nil {
		return fmt.Errorf("admin seeder: failed to look up existing users: %w", err)
	}
	if exists {
		log.Info().Str("login", admin.DefaultLogin).Msg("Admin seeder: administrator already exists")
		return nil
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(admin.DefaultPassword), s.cfg.SaltRounds)
	if err != nil {
		return fmt.Errorf("admin seeder: failed to hash password: %w", err)
	}

	user := model.User{
		Login:        admin.DefaultLogin,
		Email:        admin.DefaultEmail,
		PasswordHash: string(hash),
		IsAdmin:      true,
	}
	if err := s.userRepo.Create(&user); err != nil {
		return fmt.Errorf("admin seeder: failed to create administrator: %w", err)
	}
	log.Info().Str("login", admin.DefaultLogin).Msg("Admin seeder: default administrator created")
	return nil
}
