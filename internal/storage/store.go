package storage

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
)

// Store holds question and image metadata together with the two vector
// indexes that embed them. The i-th question vector always embeds the i-th
// question record; the same holds for images.
type Store struct {
	mu            sync.RWMutex
	questions     []QuestionCandidate
	images        []ImageRecord
	associations  []Association
	questionIndex VectorIndex
	imageIndex    VectorIndex

	// Copies of the indexed vectors, used to restore a failed Replace.
	questionVectors [][]float32
	imageVectors    [][]float32
}

// NewStore creates a store over the given indexes, which must be empty.
func NewStore(questionIndex, imageIndex VectorIndex) *Store {
	return &Store{
		questionIndex: questionIndex,
		imageIndex:    imageIndex,
	}
}

// Append adds one document's records. Readers observe either none or all
// of a successful batch.
func (s *Store) Append(ctx context.Context, b Batch) error {
	if err := s.validate(b); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.appendLocked(ctx, b)
}

// Replace clears every collection and both indexes, then repopulates them
// from batches without releasing the lock in between. Batches are checked
// before anything is cleared. If an index fails part way, the previous
// contents are put back, so readers see either the old or the new state.
func (s *Store) Replace(ctx context.Context, batches []Batch) error {
	for i, b := range batches {
		if err := s.validate(b); err != nil {
			return fmt.Errorf("batch %d: %w", i, err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	prev := Batch{
		Questions:       s.questions,
		QuestionVectors: s.questionVectors,
		Images:          s.images,
		ImageVectors:    s.imageVectors,
		Associations:    s.associations,
	}

	err := s.resetLocked(ctx)
	for i := 0; err == nil && i < len(batches); i++ {
		if err = s.appendLocked(ctx, batches[i]); err != nil {
			err = fmt.Errorf("batch %d: %w", i, err)
		}
	}
	if err == nil {
		return nil
	}

	if rerr := s.restoreLocked(ctx, prev); rerr != nil {
		return errors.Join(err, fmt.Errorf("restore previous contents: %w", rerr))
	}
	return err
}

func (s *Store) resetLocked(ctx context.Context) error {
	if err := s.questionIndex.Reset(ctx); err != nil {
		return fmt.Errorf("reset question index: %w", err)
	}
	if err := s.imageIndex.Reset(ctx); err != nil {
		return fmt.Errorf("reset image index: %w", err)
	}
	s.questions, s.questionVectors = nil, nil
	s.images, s.imageVectors = nil, nil
	s.associations = nil
	return nil
}

func (s *Store) restoreLocked(ctx context.Context, prev Batch) error {
	if err := s.resetLocked(ctx); err != nil {
		return err
	}
	return s.appendLocked(ctx, prev)
}

// validate checks record counts and vector sizes against both indexes.
func (s *Store) validate(b Batch) error {
	if len(b.Questions) != len(b.QuestionVectors) {
		return fmt.Errorf("%w: %d questions, %d vectors",
			ErrLengthMismatch, len(b.Questions), len(b.QuestionVectors))
	}
	if len(b.Images) != len(b.ImageVectors) {
		return fmt.Errorf("%w: %d images, %d vectors",
			ErrLengthMismatch, len(b.Images), len(b.ImageVectors))
	}
	if err := checkDimension("question", b.QuestionVectors, s.questionIndex.Dimension()); err != nil {
		return err
	}
	return checkDimension("image", b.ImageVectors, s.imageIndex.Dimension())
}

func checkDimension(kind string, vectors [][]float32, dim int) error {
	for i, v := range vectors {
		if len(v) != dim {
			return fmt.Errorf("%w: %s vector %d has %d dimensions, expected %d",
				ErrDimensionMismatch, kind, i, len(v), dim)
		}
	}
	return nil
}

// appendLocked grows each index together with its metadata so a failure
// on one side never leaves the other side misaligned.
func (s *Store) appendLocked(ctx context.Context, b Batch) error {
	if len(b.Questions) > 0 {
		if err := s.questionIndex.Add(ctx, b.QuestionVectors); err != nil {
			return fmt.Errorf("add question vectors: %w", err)
		}
		s.questions = append(s.questions, b.Questions...)
		s.questionVectors = append(s.questionVectors, b.QuestionVectors...)
	}
	if len(b.Images) > 0 {
		if err := s.imageIndex.Add(ctx, b.ImageVectors); err != nil {
			return fmt.Errorf("add image vectors: %w", err)
		}
		s.images = append(s.images, b.Images...)
		s.imageVectors = append(s.imageVectors, b.ImageVectors...)
	}
	s.associations = append(s.associations, b.Associations...)
	return nil
}

// SearchQuestions returns up to n questions nearest to query, nearest first.
func (s *Store) SearchQuestions(ctx context.Context, query []float32, n int) ([]QuestionCandidate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	hits, err := s.questionIndex.Search(ctx, query, n)
	if err != nil {
		return nil, err
	}

	out := make([]QuestionCandidate, 0, len(hits))
	for _, h := range hits {
		if h.Position < 0 || h.Position >= len(s.questions) {
			continue
		}
		out = append(out, s.questions[h.Position])
	}
	return out, nil
}

// SearchImages returns up to n images nearest to query, nearest first.
func (s *Store) SearchImages(ctx context.Context, query []float32, n int) ([]ImageRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	hits, err := s.imageIndex.Search(ctx, query, n)
	if err != nil {
		return nil, err
	}

	out := make([]ImageRecord, 0, len(hits))
	for _, h := range hits {
		if h.Position < 0 || h.Position >= len(s.images) {
			continue
		}
		out = append(out, s.images[h.Position])
	}
	return out, nil
}

// FilterQuestions returns up to k questions matching subject, in insertion order.
func (s *Store) FilterQuestions(subject Subject, k int) []QuestionCandidate {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []QuestionCandidate
	for _, q := range s.questions {
		if len(out) >= k {
			break
		}
		if q.Subject.Matches(subject) {
			out = append(out, q)
		}
	}
	return out
}

// FindAssociatedImage returns the image of the first association recorded
// for the question.
func (s *Store) FindAssociatedImage(questionID string) (ImageRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, a := range s.associations {
		if a.QuestionID != questionID {
			continue
		}
		for _, img := range s.images {
			if img.ID == a.ImageID {
				return img, true
			}
		}
	}
	return ImageRecord{}, false
}

// NumQuestions returns the number of stored questions.
func (s *Store) NumQuestions() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.questions)
}

// NumImages returns the number of stored images.
func (s *Store) NumImages() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.images)
}

// Questions returns a copy of every stored question.
func (s *Store) Questions() []QuestionCandidate {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]QuestionCandidate(nil), s.questions...)
}

// Images returns a copy of every stored image.
func (s *Store) Images() []ImageRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]ImageRecord(nil), s.images...)
}

// Associations returns a copy of every stored association.
func (s *Store) Associations() []Association {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Association(nil), s.associations...)
}

// Aligned reports whether both indexes hold exactly as many vectors as
// their metadata collections hold records.
func (s *Store) Aligned() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.questionIndex.Len() == len(s.questions) && s.imageIndex.Len() == len(s.images)
}

func (s *Store) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	dist := make(map[Subject]int)
	for _, q := range s.questions {
		dist[q.Subject]++
	}
	withImages := make(map[string]struct{})
	for _, a := range s.associations {
		withImages[a.QuestionID] = struct{}{}
	}

	return Stats{
		TotalQuestions:      len(s.questions),
		TotalImages:         len(s.images),
		TotalAssociations:   len(s.associations),
		QuestionsWithImages: len(withImages),
		SubjectDistribution: dist,
	}
}

// Subjects returns the distinct subjects of stored questions, sorted.
// Questions without a detected subject are not counted.
func (s *Store) Subjects() []Subject {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[Subject]struct{})
	for _, q := range s.questions {
		if q.Subject == SubjectUnknown || q.Subject == "" {
			continue
		}
		seen[q.Subject] = struct{}{}
	}
	out := make([]Subject, 0, len(seen))
	for subj := range seen {
		out = append(out, subj)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
