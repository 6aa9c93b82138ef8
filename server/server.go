// Copyright 2025 The PsWeed Authors
// SPDX-License-Identifier: Apache-2.0

// Package server exposes weeding and stored runs over HTTP.
package server

import (
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/jcodagnone/psweed/pscands"
	"github.com/jcodagnone/psweed/weed"
)

type Server struct {
	repo    pscands.Repository
	options weed.Options
}

// NewServer returns a Server. repo may be nil, in which case only stateless
// weeding is served.
func NewServer(repo pscands.Repository, options weed.Options) *Server {
	return &Server{repo: repo, options: options}
}

// Router returns the gin engine with every route registered.
func (s *Server) Router() *gin.Engine {
	r := gin.Default()

	r.POST("/api/weed", s.weedCandidates)

	if s.repo != nil {
		r.GET("/api/sets", s.listSets)
		r.POST("/api/sets/:set/runs", s.runSet)
		r.GET("/api/runs", s.listRuns)
		r.GET("/api/runs/:id/cells", s.runCells)
	}

	return r
}

func (s *Server) Run(addr string) error {
	log.Printf("Listening on %s", addr)

	return s.Router().Run(addr)
}

type weedRequest struct {
	Candidates     []weed.Candidate `json:"candidates" binding:"required"`
	SkipNeighbours bool             `json:"skip_neighbours"`
}

type weedResponse struct {
	*weed.Result
	Kept    int `json:"kept"`
	Removed int `json:"removed"`
}

func errorStatus(err error) int {
	var inErr *weed.InputError
	if errors.As(err, &inErr) {
		return http.StatusBadRequest
	}

	return http.StatusInternalServerError
}

func (s *Server) weedCandidates(c *gin.Context) {
	var req weedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})

		return
	}

	opts := s.options
	opts.SkipNeighbours = opts.SkipNeighbours || req.SkipNeighbours

	res, err := weed.New(opts).Weed(req.Candidates)
	if err != nil {
		c.JSON(errorStatus(err), gin.H{"error": err.Error()})

		return
	}

	c.JSON(http.StatusOK, weedResponse{Result: res, Kept: res.Kept(), Removed: res.Removed()})
}

func (s *Server) listSets(c *gin.Context) {
	sets, err := s.repo.ListSets()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})

		return
	}

	c.JSON(http.StatusOK, sets)
}

type runRequest struct {
	SkipNeighbours bool `json:"skip_neighbours"`
	H3Res          int  `json:"h3_res"`
}

func (s *Server) runSet(c *gin.Context) {
	set := c.Param("set")

	var req runRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})

			return
		}
	}

	cands, err := s.repo.LoadCandidates(set)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})

		return
	}

	if len(cands) == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown set " + set})

		return
	}

	opts := s.options
	opts.SkipNeighbours = opts.SkipNeighbours || req.SkipNeighbours

	res, err := weed.New(opts).Weed(cands)
	if err != nil {
		c.JSON(errorStatus(err), gin.H{"error": err.Error()})

		return
	}

	run := &pscands.Run{Set: set, SkipNeighbours: opts.SkipNeighbours, H3Res: req.H3Res}
	if err := s.repo.SaveRun(run, cands, res, nil); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})

		return
	}

	c.JSON(http.StatusCreated, run)
}

func (s *Server) listRuns(c *gin.Context) {
	runs, err := s.repo.ListRuns(c.Query("set"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})

		return
	}

	c.JSON(http.StatusOK, runs)
}

func (s *Server) runCells(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid run id"})

		return
	}

	cells, err := s.repo.SurvivorCells(id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})

		return
	}

	c.JSON(http.StatusOK, cells)
}
