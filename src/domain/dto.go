package domain

// CreateGraphRequest é o documento de uma escrita aninhada: a entidade raiz
// e, por relação, as entidades a criar ou vincular, na ordem recebida.
type CreateGraphRequest struct {
	Kind       string             `json:"kind"`
	Attributes map[string]any     `json:"attributes"`
	Relations  []RelationWriteDTO `json:"relations,omitempty"`
}

type RelationWriteDTO struct {
	Relation string             `json:"relation"`
	Entities []RelatedEntityDTO `json:"entities"`
}

// RelatedEntityDTO vincula uma entidade existente quando ID está presente;
// caso contrário cria uma nova com Attributes.
type RelatedEntityDTO struct {
	ID         *int64         `json:"id,omitempty"`
	Attributes map[string]any `json:"attributes,omitempty"`
}

// SearchRequest descreve uma consulta por atributos e por relações.
type SearchRequest struct {
	Where []ConditionDTO      `json:"where,omitempty"`
	Has   []RelationFilterDTO `json:"has,omitempty"`
	Limit int                 `json:"limit,omitempty"`
}

type ConditionDTO struct {
	Attribute string `json:"attribute"`
	Operator  string `json:"operator"`
	Value     any    `json:"value"`
}

// RelationFilterDTO exige Count entidades relacionadas (padrão ">= 1") que
// satisfaçam Where e, recursivamente, Has.
type RelationFilterDTO struct {
	Relation string              `json:"relation"`
	Operator string              `json:"operator,omitempty"`
	Count    *int                `json:"count,omitempty"`
	Where    []ConditionDTO      `json:"where,omitempty"`
	Has      []RelationFilterDTO `json:"has,omitempty"`
}
