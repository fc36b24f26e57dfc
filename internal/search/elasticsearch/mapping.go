package elasticsearch

// DefaultIndexName is the index holding approved review documents.
const DefaultIndexName = "reviewgo_reviews"

// indexMapping is the review index definition. Review text is analysed with
// both the Turkish and Arabic analyzers so either audience gets stemming.
const indexMapping = `{
  "settings": {
    "number_of_shards": 1,
    "number_of_replicas": 0,
    "analysis": {
      "analyzer": {
        "turkish_text": {
          "type": "custom",
          "tokenizer": "standard",
          "filter": ["turkish_lowercase", "turkish_stop", "turkish_stemmer"]
        }
      },
      "filter": {
        "turkish_lowercase": { "type": "lowercase", "language": "turkish" },
        "turkish_stop":      { "type": "stop", "stopwords": "_turkish_" },
        "turkish_stemmer":   { "type": "stemmer", "language": "turkish" }
      }
    }
  },
  "mappings": {
    "properties": {
      "id":            { "type": "keyword" },
      "company_id":    { "type": "keyword" },
      "author_name":   { "type": "text", "fields": { "keyword": { "type": "keyword", "ignore_above": 256 } } },
      "rating":        { "type": "integer" },
      "text":          { "type": "text", "analyzer": "turkish_text", "fields": { "arabic": { "type": "text", "analyzer": "arabic" } } },
      "helpful_count": { "type": "integer" },
      "created_at":    { "type": "date" }
    }
  }
}`
