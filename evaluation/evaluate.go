package evaluation

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/blavejr/finadvisor/config"
	"github.com/blavejr/finadvisor/models"
	"github.com/blavejr/finadvisor/services"

	"gopkg.in/yaml.v3"
)

type Question struct {
	ID               int      `json:"id" yaml:"id"`
	Question         string   `json:"question" yaml:"question"`
	GroundTruth      string   `json:"ground_truth_answer" yaml:"ground_truth_answer"`
	RelevantKeywords []string `json:"relevant_keywords" yaml:"relevant_keywords"`
	Profile          string   `json:"profile,omitempty" yaml:"profile,omitempty"`
	Notes            string   `json:"notes,omitempty" yaml:"notes,omitempty"`
}

type EvaluationResult struct {
	QuestionID        int      `json:"question_id"`
	Question          string   `json:"question"`
	Answer            string   `json:"answer"`
	RetrievedChunks   int      `json:"retrieved_chunks"`
	RelevantRetrieved int      `json:"relevant_retrieved"`
	ResponseTimeMs    int64    `json:"response_time_ms"`
	KeywordsFound     []string `json:"keywords_found"`
	Success           bool     `json:"success"`
	FScore            float64  `json:"f_score"`
}

type Metrics struct {
	TotalQuestions     int                    `json:"total_questions"`
	FailedQuestions    int                    `json:"failed_questions"`
	SuccessfulQueries  int                    `json:"successful_queries"`
	RetrievalAccuracy  float64                `json:"retrieval_accuracy"`
	AvgResponseTime    float64                `json:"avg_response_time_ms"`
	AvgChunksRetrieved float64                `json:"avg_chunks_retrieved"`
	AvgRelevantChunks  float64                `json:"avg_relevant_chunks"`
	AvgFScore          float64                `json:"avg_f_score"`
	Timestamp          string                 `json:"timestamp"`
	Configuration      map[string]interface{} `json:"configuration"`
}

type EvaluationReport struct {
	Metrics Metrics            `json:"metrics"`
	Results []EvaluationResult `json:"results"`
}

// Advisor is the question-answering chain under evaluation.
type Advisor interface {
	Ask(ctx context.Context, question string) (*services.AdvisorAnswer, error)
}

type Evaluator struct {
	config  *config.Config
	advisor Advisor
}

func NewEvaluator(cfg *config.Config, advisor Advisor) *Evaluator {
	return &Evaluator{
		config:  cfg,
		advisor: advisor,
	}
}

// LoadDataset reads questions from a JSON file, or YAML when the extension is .yaml or .yml.
func LoadDataset(path string) ([]Question, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read dataset: %w", err)
	}

	var questions []Question
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &questions)
	default:
		err = json.Unmarshal(data, &questions)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse dataset: %w", err)
	}

	return questions, nil
}

func (e *Evaluator) Evaluate(ctx context.Context, questions []Question) (*EvaluationReport, error) {
	results := make([]EvaluationResult, 0, len(questions))

	totalResponseTime := int64(0)
	totalRetrievedChunks := 0
	totalRelevantChunks := 0
	successfulQueries := 0

	fmt.Println("Starting evaluation...")
	fmt.Printf("Total questions: %d\n", len(questions))
	fmt.Println("---")

	for i, q := range questions {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		fmt.Printf("[%d/%d] Evaluating: %s\n", i+1, len(questions), q.Question)

		startTime := time.Now()
		answer, err := e.advisor.Ask(ctx, q.Question)
		if err != nil {
			fmt.Printf("Failed: %v\n", err)
			continue
		}
		responseTime := time.Since(startTime).Milliseconds()

		// keywords found in the retrieved records
		keywordsFound := checkKeywords(q.RelevantKeywords, answer.Sources)
		relevantChunks := len(keywordsFound)
		success := relevantChunks > 0

		fScore := CalculateFScore(answer.Answer, q.GroundTruth, q.RelevantKeywords)

		results = append(results, EvaluationResult{
			QuestionID:        q.ID,
			Question:          q.Question,
			Answer:            answer.Answer,
			RetrievedChunks:   len(answer.Sources),
			RelevantRetrieved: relevantChunks,
			ResponseTimeMs:    responseTime,
			KeywordsFound:     keywordsFound,
			Success:           success,
			FScore:            fScore,
		})

		totalResponseTime += responseTime
		totalRetrievedChunks += len(answer.Sources)
		totalRelevantChunks += relevantChunks
		if success {
			successfulQueries++
		}

		fmt.Printf("Completed in %dms (relevant: %d/%d, F-Score: %.2f)\n", responseTime, relevantChunks, len(answer.Sources), fScore)
	}

	totalQuestions := len(results)
	metrics := Metrics{
		TotalQuestions:    totalQuestions,
		FailedQuestions:   len(questions) - totalQuestions,
		SuccessfulQueries: successfulQueries,
		Timestamp:         time.Now().Format(time.RFC3339),
		Configuration: map[string]interface{}{
			"chunk_size":         e.config.ChunkSize,
			"chunk_overlap":      e.config.ChunkOverlap,
			"top_k":              e.config.TopK,
			"embedding_provider": e.config.EmbeddingProvider,
			"embedding_model":    e.config.EmbeddingModel,
			"llm_model":          e.config.HFChatRepo,
			"vector_store":       e.config.VectorStore,
		},
	}

	if totalQuestions > 0 {
		n := float64(totalQuestions)
		totalFScore := 0.0
		for _, result := range results {
			totalFScore += result.FScore
		}
		metrics.RetrievalAccuracy = float64(successfulQueries) / n
		metrics.AvgResponseTime = float64(totalResponseTime) / n
		metrics.AvgChunksRetrieved = float64(totalRetrievedChunks) / n
		metrics.AvgRelevantChunks = float64(totalRelevantChunks) / n
		metrics.AvgFScore = totalFScore / n
	}

	return &EvaluationReport{
		Metrics: metrics,
		Results: results,
	}, nil
}

// check if any relevant keywords appear in retrieved chunks
func checkKeywords(keywords []string, results []models.SearchResult) []string {
	found := []string{}

	for _, keyword := range keywords {
		for _, result := range results {
			if containsKeyword(result.Chunk.Text, keyword) {
				found = append(found, keyword)
				break
			}
		}
	}

	return found
}

// check if text contains keyword (case-insensitive)
func containsKeyword(text, keyword string) bool {
	return strings.Contains(strings.ToLower(text), strings.ToLower(keyword))
}

// CalculateFScore is the keyword F1 of the predicted answer against the
// ground truth: a keyword is a true positive when it appears in both.
func CalculateFScore(predictedAnswer string, groundTruth string, keywords []string) float64 {
	predictedLower := strings.ToLower(predictedAnswer)
	groundTruthLower := strings.ToLower(groundTruth)

	truePositives := 0
	falsePositives := 0
	falseNegatives := 0

	for _, keyword := range keywords {
		keywordLower := strings.ToLower(keyword)
		inPredicted := strings.Contains(predictedLower, keywordLower)
		inGroundTruth := strings.Contains(groundTruthLower, keywordLower)

		if inPredicted && inGroundTruth {
			truePositives++
		} else if inPredicted && !inGroundTruth {
			falsePositives++
		} else if !inPredicted && inGroundTruth {
			falseNegatives++
		}
	}

	precision := 0.0
	if truePositives+falsePositives > 0 {
		precision = float64(truePositives) / float64(truePositives+falsePositives)
	}

	recall := 0.0
	if truePositives+falseNegatives > 0 {
		recall = float64(truePositives) / float64(truePositives+falseNegatives)
	}

	fScore := 0.0
	if precision+recall > 0 {
		fScore = 2 * (precision * recall) / (precision + recall)
	}

	return fScore
}

// save the evaluation report to a JSON file
func SaveReport(report *EvaluationReport, path string) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create report directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}

	return nil
}

// print a summary of the evaluation results
func PrintSummary(report *EvaluationReport) {
	fmt.Println("\n" + strings.Repeat("=", 60))
	fmt.Println("EVALUATION SUMMARY")
	fmt.Println(strings.Repeat("=", 60))
	fmt.Printf("Total Questions:      %d\n", report.Metrics.TotalQuestions)
	fmt.Printf("Failed Questions:     %d\n", report.Metrics.FailedQuestions)
	fmt.Printf("Successful Queries:   %d\n", report.Metrics.SuccessfulQueries)
	fmt.Printf("Retrieval Accuracy:   %.2f%%\n", report.Metrics.RetrievalAccuracy*100)
	fmt.Printf("Avg F-Score:          %.3f\n", report.Metrics.AvgFScore)
	fmt.Printf("Avg Response Time:    %.0f ms\n", report.Metrics.AvgResponseTime)
	fmt.Printf("Avg Chunks Retrieved: %.1f\n", report.Metrics.AvgChunksRetrieved)
	fmt.Printf("Avg Relevant Chunks:  %.1f\n", report.Metrics.AvgRelevantChunks)
	fmt.Println(strings.Repeat("=", 60))

	fmt.Println("\nConfiguration:")
	for key, value := range report.Metrics.Configuration {
		fmt.Printf("  %s: %v\n", key, value)
	}
	fmt.Println(strings.Repeat("=", 60) + "\n")
}
