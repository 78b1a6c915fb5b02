package client

import (
	"sync"

	"labsite/site/services"

	"github.com/google/uuid"
)

// ContentStore caches the public site data (content blocks by key, team,
// projects, publications) behind a read lock. A failed refresh records the
// error and leaves the previously loaded data in place, so a flaky network
// never blanks out a rendered page.
type ContentStore struct {
	session *Session

	mu           sync.RWMutex
	content      map[string]services.ContentInfo
	team         []services.TeamMemberInfo
	projects     []services.ProjectInfo
	publications []services.PublicationInfo
	lastErr      error
}

func NewContentStore(session *Session) *ContentStore {
	return &ContentStore{
		session: session,
		content: make(map[string]services.ContentInfo),
	}
}

func (s *ContentStore) setErr(err error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastErr = err
	return err
}

// LastError returns the error from the most recent fetch, or nil.
func (s *ContentStore) LastError() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastErr
}

func (s *ContentStore) FetchContent() error {
	var infos []services.ContentInfo
	if err := s.session.Get("/api/content").Do(&infos); err != nil {
		return s.setErr(err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.content = make(map[string]services.ContentInfo, len(infos))
	for _, info := range infos {
		s.content[info.Key] = info
	}
	s.lastErr = nil
	return nil
}

// GetContent is a pure cache lookup, returning fallback when the key has not
// been loaded.
func (s *ContentStore) GetContent(key, fallback string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if info, ok := s.content[key]; ok {
		return info.Body
	}
	return fallback
}

func (s *ContentStore) CreateContent(key, title, body, contentType, section string) (services.ContentInfo, error) {
	req := map[string]string{
		"key": key, "title": title, "body": body,
		"type": contentType, "section": section,
	}

	var info services.ContentInfo
	if err := s.session.Post("/api/content").Json(req).Do(&info); err != nil {
		return services.ContentInfo{}, s.setErr(err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.content[info.Key] = info
	s.lastErr = nil
	return info, nil
}

func (s *ContentStore) UpdateContent(id uuid.UUID, update map[string]interface{}) (services.ContentInfo, error) {
	var info services.ContentInfo
	if err := s.session.Put("/api/content/" + id.String()).Json(update).Do(&info); err != nil {
		return services.ContentInfo{}, s.setErr(err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.content[info.Key] = info
	s.lastErr = nil
	return info, nil
}

func (s *ContentStore) DeleteContent(id uuid.UUID) error {
	if err := s.session.Delete("/api/content/" + id.String()).Do(nil); err != nil {
		return s.setErr(err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for key, info := range s.content {
		if info.Id == id {
			delete(s.content, key)
			break
		}
	}
	s.lastErr = nil
	return nil
}

func (s *ContentStore) FetchTeam() error {
	var members []services.TeamMemberInfo
	if err := s.session.Get("/api/team").Do(&members); err != nil {
		return s.setErr(err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.team = members
	s.lastErr = nil
	return nil
}

func (s *ContentStore) Team() []services.TeamMemberInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.team
}

func (s *ContentStore) FetchProjects(filters map[string]string) error {
	req := s.session.Get("/api/projects")
	for k, v := range filters {
		req = req.Param(k, v)
	}

	var projects []services.ProjectInfo
	if err := req.Do(&projects); err != nil {
		return s.setErr(err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.projects = projects
	s.lastErr = nil
	return nil
}

func (s *ContentStore) Projects() []services.ProjectInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.projects
}

func (s *ContentStore) FetchPublications(filters map[string]string) error {
	req := s.session.Get("/api/publications")
	for k, v := range filters {
		req = req.Param(k, v)
	}

	var pubs []services.PublicationInfo
	if err := req.Do(&pubs); err != nil {
		return s.setErr(err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.publications = pubs
	s.lastErr = nil
	return nil
}

func (s *ContentStore) Publications() []services.PublicationInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.publications
}
