package controllers

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/faithcal/faithcal/app/models"
	"github.com/faithcal/faithcal/app/repository"
	"github.com/faithcal/faithcal/internal/pkg/jobqueue"
	"github.com/faithcal/faithcal/internal/pkg/storage"
	"github.com/faithcal/faithcal/internal/pkg/upload"
	"github.com/faithcal/faithcal/internal/pkg/usercontext"
)

// multipart field name per media kind
var mediaFields = []struct {
	field string
	kind  models.MediaType
}{
	{"images", models.MediaTypeImage},
	{"audio", models.MediaTypeAudio},
	{"video", models.MediaTypeVideo},
}

var (
	newMediaStore    = storage.NewMediaStoreFromEnv
	enqueueMediaJobs = func(media *models.EventMedia) error {
		return jobqueue.GetManager().GetQueue().EnqueueMediaJobs(media)
	}
)

var (
	errMissingFields   = errors.New("missing required fields")
	errInvalidDate     = errors.New("invalid start date")
	errUnknownCategory = errors.New("unknown category")
)

type eventForm struct {
	Title       string
	Description string
	CategoryID  string
	StartDate   string
	StartTime   string
	Location    string
	Performers  string
	Speakers    string
	Topics      string
}

type pendingUpload struct {
	kind   models.MediaType
	header *multipart.FileHeader
}

func parseEventForm(c *fiber.Ctx) eventForm {
	field := func(name string) string { return strings.TrimSpace(c.FormValue(name)) }
	return eventForm{
		Title:       field("title"),
		Description: field("description"),
		CategoryID:  field("categoryId"),
		StartDate:   field("startDate"),
		StartTime:   field("startTime"),
		Location:    field("location"),
		Performers:  field("performers"),
		Speakers:    field("speakers"),
		Topics:      field("topics"),
	}
}

// apply copies the form onto event. Prime placement columns are never touched.
func (f eventForm) apply(event *models.Event, categories repository.CategoryRepository) error {
	if f.Title == "" || f.Description == "" || f.CategoryID == "" || f.StartDate == "" || f.StartTime == "" || f.Location == "" {
		return errMissingFields
	}

	category, err := resolveCategory(categories, f.CategoryID)
	if err != nil {
		return err
	}
	startDate, err := parseStartDate(f.StartDate)
	if err != nil {
		return err
	}

	event.Title = f.Title
	event.Description = f.Description
	event.CategoryID = category.ID
	event.StartDate = startDate
	event.StartTime = f.StartTime
	event.Location = f.Location
	event.Performers = optional(f.Performers)
	event.Speakers = optional(f.Speakers)
	event.Topics = optional(f.Topics)

	return event.Validate()
}

// resolveCategory accepts a numeric id or a slug.
func resolveCategory(categories repository.CategoryRepository, raw string) (*models.Category, error) {
	var (
		category *models.Category
		err      error
	)
	if id, convErr := strconv.ParseUint(raw, 10, 64); convErr == nil {
		category, err = categories.GetByID(uint(id))
	} else {
		category, err = categories.GetBySlug(strings.ToLower(raw))
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errUnknownCategory
	}
	return category, err
}

func parseStartDate(raw string) (time.Time, error) {
	for _, layout := range []string{"2006-01-02", time.RFC3339} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, nil
		}
	}
	return time.Time{}, errInvalidDate
}

func optional(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}

// collectUploads validates every non-empty media file before anything is written.
func collectUploads(c *fiber.Ctx) ([]pendingUpload, error) {
	form, err := c.MultipartForm()
	if err != nil {
		// url-encoded bodies carry no files
		return nil, nil
	}

	var uploads []pendingUpload
	for _, mf := range mediaFields {
		for _, fh := range form.File[mf.field] {
			if fh.Size == 0 {
				continue
			}
			head, err := readHead(fh)
			if err != nil {
				return nil, err
			}
			if _, err := upload.ValidateMedia(mf.kind, fh.Filename, fh.Size, head); err != nil {
				return nil, err
			}
			uploads = append(uploads, pendingUpload{kind: mf.kind, header: fh})
		}
	}
	return uploads, nil
}

func readHead(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()

	head := make([]byte, 512)
	n, err := io.ReadFull(f, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return nil, err
	}
	return head[:n], nil
}

// storeUploads saves the files, attaches them to the event and schedules the
// media jobs. Queue failures are logged; the upload itself has succeeded.
func storeUploads(events repository.EventRepository, event *models.Event, uploads []pendingUpload) error {
	if len(uploads) == 0 {
		return nil
	}
	store := newMediaStore()
	stored := make([]*models.EventMedia, 0, len(uploads))
	for _, u := range uploads {
		f, err := u.header.Open()
		if err != nil {
			return err
		}
		op, err := store.SaveFile(f, u.kind, u.header.Filename)
		f.Close()
		if err != nil {
			return err
		}

		media := &models.EventMedia{
			EventID:  event.ID,
			Type:     u.kind,
			URL:      op.URL,
			FileSize: op.Size,
		}
		if err := events.AddMedia(media); err != nil {
			_ = store.DeleteFile(op.URL)
			return fmt.Errorf("failed to record media: %w", err)
		}
		stored = append(stored, media)
	}

	// jobs only start once every file of the request is recorded
	for _, media := range stored {
		if err := enqueueMediaJobs(media); err != nil {
			log.Warnf("[Events] Failed to enqueue jobs for media %d: %v", media.ID, err)
		}
	}
	return nil
}

// discardEvent undoes a create whose uploads failed, so a client retry does
// not leave a duplicate behind.
func discardEvent(events repository.EventRepository, id uint) {
	if created, err := events.GetWithDetails(id); err == nil {
		store := newMediaStore()
		for _, m := range created.Media {
			if err := store.DeleteFile(m.URL); err != nil {
				log.Warnf("[Events] Failed to remove %s: %v", m.URL, err)
			}
		}
	}
	if err := events.Delete(id); err != nil {
		log.Errorf("[Events] Failed to discard event %d: %v", id, err)
	}
}

func formError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, errMissingFields):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Missing required fields"})
	case errors.Is(err, errInvalidDate):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid start date"})
	case errors.Is(err, errUnknownCategory):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid category"})
	case errors.Is(err, upload.ErrTooLarge):
		return jsonError(c, fiber.StatusRequestEntityTooLarge, "file_too_large", err.Error())
	case errors.Is(err, upload.ErrUnsupportedType), errors.Is(err, upload.ErrEmpty):
		return jsonError(c, fiber.StatusBadRequest, "unsupported_media", err.Error())
	}
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
}

// HandleCreateEvent creates an event from a multipart form. Guests may post;
// the event then has no owner.
func HandleCreateEvent(c *fiber.Ctx) error {
	repos := repository.GetGlobalRepositories()

	event := &models.Event{}
	if err := parseEventForm(c).apply(event, repos.Category); err != nil {
		return formError(c, err)
	}
	uploads, err := collectUploads(c)
	if err != nil {
		return formError(c, err)
	}

	if userCtx := usercontext.GetUserContext(c); userCtx.IsLoggedIn {
		owner := userCtx.UserID
		event.UserID = &owner
	}

	if err := repos.Event.Create(event); err != nil {
		log.Errorf("[Events] Failed to create event: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to create event"})
	}
	if err := storeUploads(repos.Event, event, uploads); err != nil {
		log.Errorf("[Events] Failed to store media for event %d: %v", event.ID, err)
		discardEvent(repos.Event, event.ID)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to create event"})
	}

	created, err := repos.Event.GetWithDetails(event.ID)
	if err != nil {
		created = event
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{"event": created})
}

// HandleUpdateEvent replaces the editable fields of an event and appends new
// media. Events with an owner can only be edited by that owner.
func HandleUpdateEvent(c *fiber.Ctx) error {
	id, ok := paramID(c, "id")
	if !ok {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Event not found"})
	}

	repos := repository.GetGlobalRepositories()
	event, err := repos.Event.GetByID(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Event not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to update event"})
	}

	if !event.IsOwnedBy(usercontext.GetUserID(c)) {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Unauthorized"})
	}

	if err := parseEventForm(c).apply(event, repos.Category); err != nil {
		return formError(c, err)
	}
	uploads, err := collectUploads(c)
	if err != nil {
		return formError(c, err)
	}

	if err := repos.Event.Update(event); err != nil {
		log.Errorf("[Events] Failed to update event %d: %v", event.ID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to update event"})
	}
	if err := storeUploads(repos.Event, event, uploads); err != nil {
		log.Errorf("[Events] Failed to store media for event %d: %v", event.ID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to update event"})
	}

	updated, err := repos.Event.GetWithDetails(event.ID)
	if err != nil {
		updated = event
	}
	return c.JSON(fiber.Map{"event": updated})
}

// HandleGetEvent returns an event with its category and media.
func HandleGetEvent(c *fiber.Ctx) error {
	id, ok := paramID(c, "id")
	if !ok {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Event not found"})
	}

	event, err := repository.GetGlobalFactory().GetEventRepository().GetWithDetails(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Event not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to load event"})
	}
	return c.JSON(fiber.Map{"event": event})
}
