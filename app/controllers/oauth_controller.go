package controllers

import (
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"github.com/google/uuid"
	"github.com/markbates/goth"
	gothfiber "github.com/shareed2k/goth_fiber"
	"gorm.io/gorm"

	"github.com/faithcal/faithcal/app/models"
	"github.com/faithcal/faithcal/app/repository"
	"github.com/faithcal/faithcal/internal/pkg/database"
)

// HandleOAuthCallback completes the provider flow and logs the user in
func HandleOAuthCallback(c *fiber.Ctx) error {
	u, err := gothfiber.CompleteUserAuth(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).SendString(fmt.Sprintf("OAuth failed: %v", err))
	}

	appUser, err := linkProviderAccount(database.GetDB(), u)
	if err != nil {
		log.Errorf("[OAuth] Linking %s account failed: %v", u.Provider, err)
		return c.Status(fiber.StatusInternalServerError).SendString("could not sign you in")
	}

	if err := startSession(c, appUser); err != nil {
		return c.Status(fiber.StatusInternalServerError).SendString("session save failed")
	}

	if err := repository.GetGlobalFactory().GetUserRepository().UpdateLastLogin(appUser.ID); err != nil {
		log.Warnf("[OAuth] Failed to update last login for user %d: %v", appUser.ID, err)
	}

	c.Set("HX-Redirect", "/dashboard")
	return c.Redirect("/dashboard", fiber.StatusSeeOther)
}

// linkProviderAccount finds or creates the local user behind a provider
// identity and refreshes the stored tokens.
func linkProviderAccount(db *gorm.DB, u goth.User) (*models.User, error) {
	var appUser models.User
	err := db.Transaction(func(tx *gorm.DB) error {
		var pa models.ProviderAccount
		res := tx.Where("provider = ? AND provider_user_id = ?", u.Provider, u.UserID).First(&pa)

		switch {
		case res.Error == nil:
			pa.AccessToken = u.AccessToken
			pa.RefreshToken = u.RefreshToken
			pa.ExpiresAt = expiresAt(u)
			if err := tx.Save(&pa).Error; err != nil {
				return fmt.Errorf("update tokens: %w", err)
			}
			return tx.First(&appUser, pa.UserID).Error

		case errors.Is(res.Error, gorm.ErrRecordNotFound):
			if u.Email != "" {
				if err := tx.Where("email = ?", u.Email).First(&appUser).Error; err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
					return err
				}
			}
			if appUser.ID == 0 {
				// Password login stays impossible for OAuth-only accounts.
				hash, err := models.HashPassword(uuid.NewString())
				if err != nil {
					return err
				}
				email := u.Email
				if email == "" {
					email = fmt.Sprintf("%s_%s@%s.oauth.local", u.Provider, u.UserID, u.Provider)
				}
				appUser = models.User{
					Name:      firstNonEmpty(u.Name, u.NickName, u.Email, "User"),
					Email:     email,
					Password:  hash,
					AvatarURL: u.AvatarURL,
					Role:      models.ROLE_USER,
					Status:    models.STATUS_ACTIVE,
				}
				if err := tx.Create(&appUser).Error; err != nil {
					return fmt.Errorf("create user: %w", err)
				}
			}
			pa = models.ProviderAccount{
				UserID:         appUser.ID,
				Provider:       u.Provider,
				ProviderUserID: u.UserID,
				AccessToken:    u.AccessToken,
				RefreshToken:   u.RefreshToken,
				ExpiresAt:      expiresAt(u),
			}
			if err := tx.Create(&pa).Error; err != nil {
				return fmt.Errorf("link provider: %w", err)
			}
			return nil

		default:
			return res.Error
		}
	})
	if err != nil {
		return nil, err
	}
	return &appUser, nil
}

func expiresAt(u goth.User) *time.Time {
	if u.ExpiresAt.IsZero() {
		return nil
	}
	t := u.ExpiresAt
	return &t
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
