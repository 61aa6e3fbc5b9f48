// Zaparoo Workshop
// Copyright (c) 2026 The Zaparoo Project Contributors.
// SPDX-License-Identifier: GPL-3.0-or-later
//
// This file is part of Zaparoo Workshop.
//
// Zaparoo Workshop is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// Zaparoo Workshop is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with Zaparoo Workshop.  If not, see <http://www.gnu.org/licenses/>.

package workshop

import (
	"github.com/ZaparooProject/zaparoo-workshop/pkg/steamworks"
	"github.com/rs/zerolog/log"
)

// DetailsBatchSize is the most ids the platform accepts in one details
// query.
const DetailsBatchSize = 50

// Dependencies returns the required items of parent with their details.
func (s *Service) Dependencies(parent steamworks.PublishedFileID) []DependencyInfo {
	const op = "list dependencies"
	if !s.ready(op) {
		return nil
	}

	children := s.childIDs(parent)
	if len(children) == 0 {
		return []DependencyInfo{}
	}

	deps := make([]DependencyInfo, 0, len(children))
	for start := 0; start < len(children); start += DetailsBatchSize {
		end := min(start+DetailsBatchSize, len(children))
		deps = append(deps, s.batchDetails(children[start:end])...)
	}
	return deps
}

func (s *Service) childIDs(parent steamworks.PublishedFileID) []steamworks.PublishedFileID {
	res, ok := s.query("query children", func(api steamworks.API) steamworks.QueryHandle {
		h := api.CreateQueryDetails([]steamworks.PublishedFileID{parent})
		if h != steamworks.InvalidQueryHandle {
			api.SetReturnChildren(h, true)
		}
		return h
	})
	if !ok {
		return nil
	}
	defer s.releaseQuery(res.Handle)
	if res.NumResults == 0 {
		return nil
	}

	var children []steamworks.PublishedFileID
	err := s.rt.Pump().Exec(func(api steamworks.API) {
		d, ok := api.QueryResult(res.Handle, 0)
		if !ok || d.NumChildren == 0 {
			return
		}
		children = api.QueryChildren(res.Handle, 0, d.NumChildren)
	})
	if err != nil {
		logFailure("query children", err)
		return nil
	}

	log.Debug().Int("count", len(children)).Uint64("parent", uint64(parent)).Msg("found children")
	return children
}

func (s *Service) batchDetails(ids []steamworks.PublishedFileID) []DependencyInfo {
	if len(ids) == 0 {
		return nil
	}

	res, ok := s.query("query details", func(api steamworks.API) steamworks.QueryHandle {
		return api.CreateQueryDetails(ids)
	})
	if !ok {
		return nil
	}
	defer s.releaseQuery(res.Handle)

	out := make([]DependencyInfo, 0, res.NumResults)
	err := s.rt.Pump().Exec(func(api steamworks.API) {
		for i := range res.NumResults {
			d, ok := api.QueryResult(res.Handle, i)
			if !ok {
				continue
			}
			out = append(out, DependencyInfo{
				ID:         d.ID,
				Title:      d.Title,
				PreviewURL: api.QueryPreviewURL(res.Handle, i),
				Valid:      d.Result.OK(),
			})
		}
	})
	if err != nil {
		logFailure("query details", err)
		return nil
	}
	return out
}

// ItemDetails returns the details of a single item.
func (s *Service) ItemDetails(id steamworks.PublishedFileID) (DependencyInfo, bool) {
	if !s.ready("item details") {
		return DependencyInfo{}, false
	}
	res := s.batchDetails([]steamworks.PublishedFileID{id})
	if len(res) == 0 {
		return DependencyInfo{}, false
	}
	return res[0], true
}

// AddDependency makes child a required item of parent.
func (s *Service) AddDependency(parent, child steamworks.PublishedFileID) bool {
	return s.dependencyCall("add dependency", parent, child, func(api steamworks.API) steamworks.APICall {
		return api.AddDependency(parent, child)
	})
}

// RemoveDependency removes child from parent's required items.
func (s *Service) RemoveDependency(parent, child steamworks.PublishedFileID) bool {
	return s.dependencyCall("remove dependency", parent, child, func(api steamworks.API) steamworks.APICall {
		return api.RemoveDependency(parent, child)
	})
}

func (s *Service) dependencyCall(
	op string,
	parent, child steamworks.PublishedFileID,
	issue func(api steamworks.API) steamworks.APICall,
) bool {
	if !s.ready(op) {
		return false
	}
	log.Info().Uint64("parent", uint64(parent)).Uint64("child", uint64(child)).Msg(op)

	fut, err := s.rt.Pump().Issue(issue)
	if err != nil {
		logFailure(op, err)
		return false
	}
	res, err := steamworks.Await[steamworks.DependencyResult](fut, s.opts.MetadataTimeout)
	if err != nil {
		logFailure(op, err)
		return false
	}
	if !res.Result.OK() {
		logFailure(op, &resultError{op: op, result: res.Result})
		return false
	}
	return true
}
