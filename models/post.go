package models

// Post represents the posts table: a single failure screenshot submission.
type Post struct {
	PostID       string `gorm:"primarykey;column:post_id" json:"postId"`
	Title        string `gorm:"column:title;not null" json:"title"`
	ImageURL     string `gorm:"column:image_url;not null" json:"imageUrl"`
	Agent        string `gorm:"column:agent" json:"agent"`
	Caption      string `gorm:"column:caption" json:"caption"`
	AuthorWallet string `gorm:"column:author_wallet;not null;index" json:"authorWallet"`
	AuthorName   string `gorm:"column:author_name" json:"authorName"`
	UpvoteCount  int64  `gorm:"column:upvote_count;not null;default:0" json:"upvoteCount"`
	BaseModel
}

// TableName sets the table name for GORM
func (Post) TableName() string {
	return "posts"
}

// Comment represents the comments table.
type Comment struct {
	CommentID    string `gorm:"primarykey;column:comment_id" json:"commentId"`
	PostID       string `gorm:"column:post_id;not null;index" json:"postId"`
	Content      string `gorm:"column:content;not null" json:"content"`
	AuthorWallet string `gorm:"column:author_wallet;not null" json:"authorWallet"`
	AuthorName   string `gorm:"column:author_name" json:"authorName"`
	BaseModel
}

// TableName sets the table name for GORM
func (Comment) TableName() string {
	return "comments"
}

// Vote represents the votes table. The (post_id, voter_wallet) uniqueness
// constraint is what makes an upvote idempotent per wallet.
type Vote struct {
	VoteID      string `gorm:"primarykey;column:vote_id" json:"voteId"`
	PostID      string `gorm:"column:post_id;not null;uniqueIndex:idx_votes_post_voter" json:"postId"`
	VoterWallet string `gorm:"column:voter_wallet;not null;uniqueIndex:idx_votes_post_voter" json:"voterWallet"`
	BaseModel
}

// TableName sets the table name for GORM
func (Vote) TableName() string {
	return "votes"
}
