package es

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/elastic/go-elasticsearch/v9"

	"github.com/ntalakanov/taskboard/internal/models"
)

// TaskIndex maintains the task search index. Indexing runs after the DB
// write commits and never gates the request; callers log failures and move
// on.
type TaskIndex struct {
	ES    *elasticsearch.Client
	Index string
}

func (ti *TaskIndex) IndexTask(ctx context.Context, task *models.Task) error {
	if ti == nil || ti.ES == nil {
		return nil
	}

	doc := map[string]interface{}{
		"id":          task.ID,
		"project_id":  task.ProjectID,
		"board_id":    task.BoardID,
		"title":       task.Title,
		"description": task.Description,
		"status":      task.Status,
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("es: json.Marshal failed: %w", err)
	}

	res, err := ti.ES.Index(
		ti.Index,
		bytes.NewReader(data),
		ti.ES.Index.WithContext(ctx),
		ti.ES.Index.WithDocumentID(strconv.FormatUint(uint64(task.ID), 10)),
	)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("es: index failed: %s", res.Status())
	}
	return nil
}

func (ti *TaskIndex) DeleteTask(ctx context.Context, taskID uint) error {
	if ti == nil || ti.ES == nil {
		return nil
	}

	res, err := ti.ES.Delete(
		ti.Index,
		strconv.FormatUint(uint64(taskID), 10),
		ti.ES.Delete.WithContext(ctx),
	)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.IsError() && res.StatusCode != 404 {
		return fmt.Errorf("es: delete failed: %s", res.Status())
	}
	return nil
}

// SearchTasks runs a fuzzy multi-field query scoped to one project.
func (ti *TaskIndex) SearchTasks(ctx context.Context, projectID uint, query string, from, size int) (int64, []models.Task, error) {
	body := map[string]interface{}{
		"query": map[string]interface{}{
			"bool": map[string]interface{}{
				"must": map[string]interface{}{
					"multi_match": map[string]interface{}{
						"query":     query,
						"fields":    []string{"title^2", "description"},
						"fuzziness": "AUTO",
					},
				},
				"filter": map[string]interface{}{
					"term": map[string]interface{}{"project_id": projectID},
				},
			},
		},
		"from": from,
		"size": size,
	}

	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(body); err != nil {
		return 0, nil, fmt.Errorf("es: encode query: %w", err)
	}

	res, err := ti.ES.Search(
		ti.ES.Search.WithContext(ctx),
		ti.ES.Search.WithIndex(ti.Index),
		ti.ES.Search.WithBody(&buf),
	)
	if err != nil {
		return 0, nil, err
	}
	defer res.Body.Close()
	if res.IsError() {
		return 0, nil, fmt.Errorf("es: search failed: %s", res.Status())
	}

	var parsed struct {
		Hits struct {
			Total struct {
				Value int64 `json:"value"`
			} `json:"total"`
			Hits []struct {
				Source models.Task `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return 0, nil, fmt.Errorf("es: decode response: %w", err)
	}

	tasks := make([]models.Task, 0, len(parsed.Hits.Hits))
	for _, h := range parsed.Hits.Hits {
		tasks = append(tasks, h.Source)
	}
	return parsed.Hits.Total.Value, tasks, nil
}
