package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/psicapp/riskwatch/internal/models"
	"github.com/psicapp/riskwatch/internal/storage"
)

const (
	reportsPrefix       = "risk_reports/"
	profilesPrefix      = "profiles/"
	notificationsPrefix = "notifications/"
)

// BlobStore keeps each row as a JSON document in blob storage, one
// document per id under a per-collection prefix.
type BlobStore struct {
	storage storage.StorageInterface
	now     func() time.Time
	mu      sync.Mutex // serialises read-modify-write updates
}

// NewBlobStore creates a document store on top of s
func NewBlobStore(s storage.StorageInterface) *BlobStore {
	return &BlobStore{
		storage: s,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Repositories exposes the store as the three collection repositories
func (b *BlobStore) Repositories() *Repositories {
	return &Repositories{
		Reports:       &blobReports{b},
		Profiles:      &blobProfiles{b},
		Notifications: &blobNotifications{b},
	}
}

// docName escapes id so it always names exactly one document under prefix
func docName(prefix, id string) string {
	return prefix + url.PathEscape(id) + ".json"
}

// inboxPrefix is the per-recipient folder of the notifications collection
func inboxPrefix(userID string) string {
	return notificationsPrefix + url.PathEscape(userID) + "/"
}

func (b *BlobStore) put(ctx context.Context, prefix, id string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal %s%s: %w", prefix, id, err)
	}
	return b.storage.Store(ctx, docName(prefix, id), data)
}

func (b *BlobStore) get(ctx context.Context, prefix, id string, v any) error {
	data, err := b.storage.Retrieve(ctx, docName(prefix, id))
	if err != nil {
		if errors.Is(err, storage.ErrBlobNotFound) {
			return fmt.Errorf("%s%s: %w", prefix, id, ErrNotFound)
		}
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to decode %s%s: %w", prefix, id, err)
	}
	return nil
}

// each decodes every document under prefix and hands it to fn
func each[T any](ctx context.Context, b *BlobStore, prefix string, fn func(T)) error {
	names, err := b.storage.List(ctx, prefix)
	if err != nil {
		return err
	}
	for _, name := range names {
		data, err := b.storage.Retrieve(ctx, name)
		if err != nil {
			if errors.Is(err, storage.ErrBlobNotFound) {
				continue
			}
			return err
		}
		var item T
		if err := json.Unmarshal(data, &item); err != nil {
			return fmt.Errorf("failed to decode %s: %w", name, err)
		}
		fn(item)
	}
	return nil
}

type blobReports struct{ *BlobStore }

func (r *blobReports) Insert(ctx context.Context, report *models.RiskReport) error {
	report.ID = uuid.NewString()
	report.Timestamp = r.now()
	return r.put(ctx, reportsPrefix, report.ID, report)
}

func (r *blobReports) Get(ctx context.Context, id string) (*models.RiskReport, error) {
	var report models.RiskReport
	if err := r.get(ctx, reportsPrefix, id, &report); err != nil {
		return nil, err
	}
	return &report, nil
}

func (r *blobReports) List(ctx context.Context, filter ReportFilter) ([]models.RiskReport, error) {
	reports := []models.RiskReport{}
	err := each(ctx, r.BlobStore, reportsPrefix, func(report models.RiskReport) {
		if filter.OnlyUnreviewed && report.Reviewed {
			return
		}
		reports = append(reports, report)
	})
	if err != nil {
		return nil, err
	}

	sort.SliceStable(reports, func(i, j int) bool {
		return reports[i].Timestamp.After(reports[j].Timestamp)
	})
	return reports, nil
}

func (r *blobReports) Update(ctx context.Context, id string, update *models.ReportUpdate) (*models.RiskReport, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	report, err := r.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	update.Apply(report)

	if err := r.put(ctx, reportsPrefix, id, report); err != nil {
		return nil, err
	}
	return report, nil
}

type blobProfiles struct{ *BlobStore }

func (p *blobProfiles) Get(ctx context.Context, id string) (*models.Profile, error) {
	var profile models.Profile
	if err := p.get(ctx, profilesPrefix, id, &profile); err != nil {
		return nil, err
	}
	return &profile, nil
}

func (p *blobProfiles) GetMany(ctx context.Context, ids []string) ([]models.Profile, error) {
	profiles := []models.Profile{}
	for _, id := range ids {
		profile, err := p.Get(ctx, id)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		profiles = append(profiles, *profile)
	}
	return profiles, nil
}

func (p *blobProfiles) ListByRole(ctx context.Context, role models.Role) ([]models.Profile, error) {
	profiles := []models.Profile{}
	err := each(ctx, p.BlobStore, profilesPrefix, func(profile models.Profile) {
		if profile.Role == role {
			profiles = append(profiles, profile)
		}
	})
	return profiles, err
}

func (p *blobProfiles) Upsert(ctx context.Context, profile *models.Profile) error {
	if profile.Role == "" {
		profile.Role = models.RoleUser
	}
	return p.put(ctx, profilesPrefix, profile.ID, profile)
}

type blobNotifications struct{ *BlobStore }

func (n *blobNotifications) Insert(ctx context.Context, notification *models.Notification) error {
	if notification.ID == "" {
		notification.ID = uuid.NewString()
	}
	if notification.CreatedAt.IsZero() {
		notification.CreatedAt = n.now()
	}
	// Grouped by recipient so an inbox is a single prefix listing.
	return n.put(ctx, inboxPrefix(notification.UserID), notification.ID, notification)
}

func (n *blobNotifications) ListForUser(ctx context.Context, userID string, unreadOnly bool) ([]models.Notification, error) {
	out := []models.Notification{}
	err := each(ctx, n.BlobStore, inboxPrefix(userID), func(item models.Notification) {
		if unreadOnly && item.Read {
			return
		}
		out = append(out, item)
	})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (n *blobNotifications) MarkRead(ctx context.Context, id string) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	names, err := n.storage.List(ctx, notificationsPrefix)
	if err != nil {
		return err
	}
	suffix := "/" + url.PathEscape(id) + ".json"
	for _, name := range names {
		if !strings.HasSuffix(name, suffix) {
			continue
		}
		prefix := name[:len(name)-len(suffix)+1]
		var item models.Notification
		if err := n.get(ctx, prefix, id, &item); err != nil {
			return err
		}
		item.Read = true
		return n.put(ctx, prefix, id, &item)
	}
	return fmt.Errorf("notification %s: %w", id, ErrNotFound)
}
