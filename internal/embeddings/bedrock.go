package embeddings

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
)

const defaultTitanModel = "amazon.titan-embed-text-v2:0"

type bedrockProvider struct {
	client *bedrockruntime.Client
	model  string
	dims   int
}

type titanEmbedRequest struct {
	InputText  string `json:"inputText"`
	Dimensions int    `json:"dimensions,omitempty"`
}

type titanEmbedResponse struct {
	Embedding []float64 `json:"embedding"`
}

func newBedrockFromEnv() Provider {
	region := strings.TrimSpace(os.Getenv("AWS_REGION"))
	if region == "" {
		region = strings.TrimSpace(os.Getenv("AWS_DEFAULT_REGION"))
	}
	if region == "" {
		return nil
	}
	cfg, err := awsconfig.LoadDefaultConfig(context.Background(), awsconfig.WithRegion(region))
	if err != nil {
		return nil
	}
	model := os.Getenv("BEDROCK_EMBEDDINGS_MODEL")
	if model == "" {
		model = defaultTitanModel
	}
	dims := 1024
	if v := strings.TrimSpace(os.Getenv("BEDROCK_EMBEDDINGS_DIMS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			dims = n
		}
	}
	return &bedrockProvider{
		client: bedrockruntime.NewFromConfig(cfg),
		model:  model,
		dims:   dims,
	}
}

func (p *bedrockProvider) Name() string    { return "bedrock" }
func (p *bedrockProvider) Dimensions() int { return p.dims }

// Embed invokes the Titan embeddings model once per input; the model API
// accepts a single text per call.
func (p *bedrockProvider) Embed(ctx context.Context, inputs []string) ([][]float32, error) {
	out := make([][]float32, 0, len(inputs))
	for _, input := range inputs {
		body, err := json.Marshal(titanEmbedRequest{InputText: input, Dimensions: p.dims})
		if err != nil {
			return nil, err
		}
		resp, err := p.client.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
			ModelId:     aws.String(p.model),
			Body:        body,
			ContentType: aws.String("application/json"),
			Accept:      aws.String("application/json"),
		})
		if err != nil {
			return nil, fmt.Errorf("bedrock invoke failed: %w", err)
		}
		var parsed titanEmbedResponse
		if err := json.Unmarshal(resp.Body, &parsed); err != nil {
			return nil, fmt.Errorf("bedrock response decode failed: %w", err)
		}
		if len(parsed.Embedding) == 0 {
			return nil, fmt.Errorf("bedrock returned an empty embedding")
		}
		out = append(out, f64to32(parsed.Embedding))
	}
	return out, nil
}
