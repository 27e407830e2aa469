package api

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/james-see/earquiz/internal/database"
	"github.com/james-see/earquiz/internal/logger"
	"github.com/james-see/earquiz/pkg/drill"
	"github.com/james-see/earquiz/pkg/export"
	"github.com/james-see/earquiz/pkg/quiz"
)

func (s *Server) lookup(id string) (*sessionEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", errSessionNotFound, id)
	}
	return e, nil
}

// withSession runs fn holding the session lock
func (s *Server) withSession(c *gin.Context, fn func(e *sessionEntry)) {
	e, err := s.lookup(c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	fn(e)
}

func sessionView(id string, q *quiz.Session) SessionResponse {
	opts := q.Options()
	resp := SessionResponse{
		ID:        id,
		Mode:      string(opts.Mode),
		Questions: opts.Questions,
		Config:    toConfig(q.Generator().Config()),
		Score:     toScore(q.Score()),
	}
	if d, ok := q.Current(); ok {
		view := toDrill(d)
		resp.Current = &view
	}
	return resp
}

// createSession godoc
// @Summary Create a quiz session
// @Description Creates a learn or test session over a drill configuration
// @Tags sessions
// @Accept json
// @Produce json
// @Param request body SessionRequest true "Session options"
// @Success 201 {object} SessionResponse
// @Failure 400 {object} map[string]string
// @Failure 422 {object} map[string]string
// @Router /api/v1/sessions [post]
func (s *Server) createSession(c *gin.Context) {
	var req SessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}
	if req.Mode == "" {
		req.Mode = string(quiz.ModeLearn)
	}
	mode, err := quiz.ParseMode(req.Mode)
	if err != nil {
		respondError(c, err)
		return
	}
	cfg, err := req.Config.Apply(s.defaults)
	if err != nil {
		respondError(c, err)
		return
	}
	if err := cfg.Validate(); err != nil {
		respondError(c, err)
		return
	}

	q, err := quiz.NewSession(s.newGenerator(cfg), quiz.Options{
		Mode:      mode,
		Questions: req.Questions,
		PassRatio: req.PassRatio,
	})
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	id := uuid.New().String()
	s.mu.Lock()
	s.sessions[id] = &sessionEntry{quiz: q}
	s.mu.Unlock()

	logger.Info("Session created", logger.Fields{
		"session_id": id,
		"mode":       string(mode),
		"bands":      len(cfg.Bands),
		"dual_band":  cfg.DualBand,
	})
	c.JSON(http.StatusCreated, sessionView(id, q))
}

// getSession godoc
// @Summary Get a quiz session
// @Tags sessions
// @Produce json
// @Param id path string true "Session ID"
// @Success 200 {object} SessionResponse
// @Failure 404 {object} map[string]string
// @Router /api/v1/sessions/{id} [get]
func (s *Server) getSession(c *gin.Context) {
	s.withSession(c, func(e *sessionEntry) {
		s.saveIfComplete(c, e)
		c.JSON(http.StatusOK, sessionView(c.Param("id"), e.quiz))
	})
}

// deleteSession godoc
// @Summary Delete a quiz session
// @Tags sessions
// @Param id path string true "Session ID"
// @Success 204
// @Failure 404 {object} map[string]string
// @Router /api/v1/sessions/{id} [delete]
func (s *Server) deleteSession(c *gin.Context) {
	id := c.Param("id")
	s.mu.Lock()
	_, ok := s.sessions[id]
	delete(s.sessions, id)
	s.mu.Unlock()
	if !ok {
		respondError(c, fmt.Errorf("%w: %s", errSessionNotFound, id))
		return
	}
	c.Status(http.StatusNoContent)
}

// updateConfig godoc
// @Summary Reconfigure a session
// @Description Replaces the drill configuration. The cached sequence is dropped.
// @Tags sessions
// @Accept json
// @Produce json
// @Param id path string true "Session ID"
// @Param request body ConfigRequest true "Configuration overrides"
// @Success 200 {object} SessionResponse
// @Failure 404 {object} map[string]string
// @Failure 422 {object} map[string]string
// @Router /api/v1/sessions/{id}/config [put]
func (s *Server) updateConfig(c *gin.Context) {
	var req ConfigRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}
	s.withSession(c, func(e *sessionEntry) {
		gen := e.quiz.Generator()
		cfg, err := req.Apply(gen.Config())
		if err != nil {
			respondError(c, err)
			return
		}
		if err := cfg.Validate(); err != nil {
			respondError(c, err)
			return
		}
		gen.SetConfig(cfg)
		c.JSON(http.StatusOK, sessionView(c.Param("id"), e.quiz))
	})
}

// regenerate godoc
// @Summary Regenerate the session sequence
// @Tags sessions
// @Accept json
// @Produce json
// @Param id path string true "Session ID"
// @Param request body GenerateRequest false "Optional start band, negative for cuts"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Failure 422 {object} map[string]string
// @Router /api/v1/sessions/{id}/generate [post]
func (s *Server) regenerate(c *gin.Context) {
	var req GenerateRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
			return
		}
	}
	s.withSession(c, func(e *sessionEntry) {
		gen := e.quiz.Generator()
		seq, err := generate(gen, req.Start)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"source":   bandsToHz(gen.SourceSequence()),
			"sequence": toDrills(seq),
		})
	})
}

// next godoc
// @Summary Next drill of the cycle
// @Description Returns the next drill in sequence order, wrapping at the end.
// @Description With start set the sequence is regenerated from that band first.
// @Tags sessions
// @Produce json
// @Param id path string true "Session ID"
// @Param start query string false "Start band, e.g. 1k or -250"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Failure 422 {object} map[string]string
// @Router /api/v1/sessions/{id}/next [get]
func (s *Server) next(c *gin.Context) {
	s.withSession(c, func(e *sessionEntry) {
		gen := e.quiz.Generator()
		var d drill.Drill
		var err error
		if start := c.Query("start"); start != "" {
			var b drill.Band
			if b, err = parseStart(start); err == nil {
				d, err = gen.NextFrom(b)
			}
		} else {
			d, err = gen.Next()
		}
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"drill":    toDrill(d),
			"position": gen.Position(),
		})
	})
}

// random godoc
// @Summary Random drill
// @Description Returns a random drill that differs from the previous random pick
// @Tags sessions
// @Produce json
// @Param id path string true "Session ID"
// @Success 200 {object} map[string]interface{}
// @Failure 404 {object} map[string]string
// @Failure 422 {object} map[string]string
// @Router /api/v1/sessions/{id}/random [get]
func (s *Server) random(c *gin.Context) {
	s.withSession(c, func(e *sessionEntry) {
		d, err := e.quiz.Generator().RandomPick()
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"drill": toDrill(d)})
	})
}

// choices godoc
// @Summary Answer choices
// @Description Lists the distinct drills a learner can answer with
// @Tags sessions
// @Produce json
// @Param id path string true "Session ID"
// @Success 200 {object} map[string]interface{}
// @Failure 404 {object} map[string]string
// @Router /api/v1/sessions/{id}/choices [get]
func (s *Server) choices(c *gin.Context) {
	s.withSession(c, func(e *sessionEntry) {
		choices, err := e.quiz.Choices()
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"choices": toDrills(choices)})
	})
}

// nextDrill godoc
// @Summary Ask the next quiz drill
// @Description Learn sessions walk the cycle, test sessions draw at random
// @Tags sessions
// @Produce json
// @Param id path string true "Session ID"
// @Success 200 {object} SessionResponse
// @Failure 404 {object} map[string]string
// @Failure 409 {object} map[string]string
// @Router /api/v1/sessions/{id}/drill [post]
func (s *Server) nextDrill(c *gin.Context) {
	s.withSession(c, func(e *sessionEntry) {
		if _, err := e.quiz.NextDrill(); err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, sessionView(c.Param("id"), e.quiz))
	})
}

// answer godoc
// @Summary Answer the current drill
// @Tags sessions
// @Accept json
// @Produce json
// @Param id path string true "Session ID"
// @Param request body AnswerRequest true "Answer, e.g. +1k"
// @Success 200 {object} AnswerResponse
// @Failure 400 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Failure 409 {object} map[string]string
// @Router /api/v1/sessions/{id}/answer [post]
func (s *Server) answer(c *gin.Context) {
	var req AnswerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}
	guess, err := drill.ParseDrill(req.Answer)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	s.withSession(c, func(e *sessionEntry) {
		a, err := e.quiz.Answer(guess)
		if err != nil {
			respondError(c, err)
			return
		}
		s.saveIfComplete(c, e)
		score := e.quiz.Score()
		c.JSON(http.StatusOK, AnswerResponse{
			Correct: a.Correct,
			Drill:   toDrill(a.Drill),
			Guess:   toDrill(a.Guess),
			Score:   toScore(score),
		})
	})
}

// score godoc
// @Summary Session score
// @Tags sessions
// @Produce json
// @Param id path string true "Session ID"
// @Success 200 {object} ScoreResponse
// @Failure 404 {object} map[string]string
// @Router /api/v1/sessions/{id}/score [get]
func (s *Server) score(c *gin.Context) {
	s.withSession(c, func(e *sessionEntry) {
		s.saveIfComplete(c, e)
		c.JSON(http.StatusOK, toScore(e.quiz.Score()))
	})
}

// restart godoc
// @Summary Restart a session
// @Description Clears the score and restarts the drill cycle
// @Tags sessions
// @Produce json
// @Param id path string true "Session ID"
// @Success 200 {object} SessionResponse
// @Failure 404 {object} map[string]string
// @Router /api/v1/sessions/{id}/restart [post]
func (s *Server) restart(c *gin.Context) {
	s.withSession(c, func(e *sessionEntry) {
		if err := e.quiz.Restart(); err != nil {
			respondError(c, err)
			return
		}
		e.saved = false
		c.JSON(http.StatusOK, sessionView(c.Param("id"), e.quiz))
	})
}

// exportSequence godoc
// @Summary Export the session sequence
// @Description Downloads the drill cycle as a MIDI cue file, JSON or text
// @Tags sessions
// @Produce application/octet-stream
// @Param id path string true "Session ID"
// @Param format query string false "midi, json or txt (default: midi)"
// @Success 200 {file} binary
// @Failure 400 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Router /api/v1/sessions/{id}/export [get]
func (s *Server) exportSequence(c *gin.Context) {
	format := export.Format(strings.ToLower(c.DefaultQuery("format", string(export.FormatMIDI))))
	var ext, contentType string
	switch format {
	case export.FormatMIDI:
		ext, contentType = ".mid", "audio/midi"
	case export.FormatJSON:
		ext, contentType = ".json", "application/json"
	case export.FormatText:
		ext, contentType = ".txt", "text/plain; charset=utf-8"
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unsupported format"})
		return
	}

	s.withSession(c, func(e *sessionEntry) {
		gen := e.quiz.Generator()
		seq := gen.Sequence()
		if seq == nil {
			var err error
			if seq, err = gen.Generate(); err != nil {
				respondError(c, err)
				return
			}
		}
		data, err := s.exporter.Encode(format, "earquiz", seq)
		if err != nil {
			respondError(c, err)
			return
		}
		c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=earquiz%s", ext))
		c.Data(http.StatusOK, contentType, data)
	})
}

// saveIfComplete stores the result of a finished test session once. A failed
// save is logged and retried on the next answer, score or session read.
func (s *Server) saveIfComplete(c *gin.Context, e *sessionEntry) {
	if e.saved || e.quiz.Mode() != quiz.ModeTest || !e.quiz.Score().Complete {
		return
	}
	if err := s.saveResult(c, e.quiz); err != nil {
		logger.Error("Failed to save test result", err, logger.WithContext(c))
		return
	}
	e.saved = true
}

func (s *Server) saveResult(c *gin.Context, q *quiz.Session) error {
	cfg := q.Generator().Config()
	labels := make([]string, len(cfg.Bands))
	for i, b := range cfg.Bands {
		labels[i] = drill.FormatBand(float64(b))
	}
	score := q.Score()
	r := &database.Result{
		SessionID: c.Param("id"),
		Mode:      string(q.Mode()),
		Bands:     strings.Join(labels, ","),
		DualBand:  cfg.DualBand,
		Asked:     score.Answered,
		Correct:   score.Correct,
		Percent:   score.Percent,
		Passed:    score.Passed,
	}
	if err := s.store.SaveResult(c.Request.Context(), r); err != nil {
		return fmt.Errorf("failed to save result: %w", err)
	}
	fields := logger.WithContext(c)
	fields["percent"] = score.Percent
	fields["passed"] = score.Passed
	logger.Info("Test result saved", fields)
	return nil
}
